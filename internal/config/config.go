package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Oraculo
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Extractor   ExtractorConfig   `mapstructure:"extractor"`
	RAG         RAGConfig         `mapstructure:"rag"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Chat        ChatConfig        `mapstructure:"chat"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	BaseURL      string   `mapstructure:"base_url"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds catalog database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig holds document storage configuration
type StorageConfig struct {
	// Documents is the folder scanned by the catalog run.
	Documents string `mapstructure:"documents"`
	// Uploads receives files posted through the admin API.
	Uploads string `mapstructure:"uploads"`
}

// CatalogConfig holds catalog behaviour
type CatalogConfig struct {
	PreviewLength int `mapstructure:"preview_length"`
}

// ExtractorConfig holds text extraction configuration
type ExtractorConfig struct {
	// TextLayer selects the direct extraction engine: "native" or "pdftotext".
	TextLayer     string        `mapstructure:"text_layer"`
	MinTextLength int           `mapstructure:"min_text_length"`
	OCRCommand    string        `mapstructure:"ocr_command"`
	OCRLanguage   string        `mapstructure:"ocr_language"`
	OCRTimeout    time.Duration `mapstructure:"ocr_timeout"`
}

// RAGConfig holds chunking and retrieval configuration
type RAGConfig struct {
	ChunkSize        int      `mapstructure:"chunk_size"`
	ChunkOverlap     int      `mapstructure:"chunk_overlap"`
	TopN             int      `mapstructure:"top_n"`
	StopWords        []string `mapstructure:"stop_words"`
	IndexConcurrency int      `mapstructure:"index_concurrency"`
}

// VectorStoreConfig holds vector index configuration
type VectorStoreConfig struct {
	// Backend is "sqlite" (sqvect database at Path) or "qdrant".
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	URL        string `mapstructure:"url"`
	Collection string `mapstructure:"collection"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	// Provider is "ollama", "openai" or "rago".
	Provider       string        `mapstructure:"provider"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	LLMModel       string        `mapstructure:"llm_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// ChatConfig holds conversation behaviour
type ChatConfig struct {
	BotName            string   `mapstructure:"bot_name"`
	Greetings          []string `mapstructure:"greetings"`
	Farewells          []string `mapstructure:"farewells"`
	GreetingTemplate   string   `mapstructure:"greeting_template"`
	FarewellMessage    string   `mapstructure:"farewell_message"`
	SystemPrompt       string   `mapstructure:"system_prompt"`
	NoInfoMarker       string   `mapstructure:"no_info_marker"`
	FoundSuffix        string   `mapstructure:"found_suffix"`
	NotFoundSuffix     string   `mapstructure:"not_found_suffix"`
	ErrorMessage       string   `mapstructure:"error_message"`
	PersistFailedTurns bool     `mapstructure:"persist_failed_turns"`
	Workers            int      `mapstructure:"workers"`
	QueueSize          int      `mapstructure:"queue_size"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	RequestsPerHour int  `mapstructure:"requests_per_hour"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// ORACULO_LLM_API_KEY overrides llm.api_key
	v.SetEnvPrefix("ORACULO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("admin.api_key", "")

	v.SetDefault("database.path", "./data/oraculo.db")
	v.SetDefault("storage.documents", "./documentos_para_catalogar")
	v.SetDefault("storage.uploads", "./data/uploads")

	v.SetDefault("catalog.preview_length", 500)

	v.SetDefault("extractor.text_layer", "native")
	v.SetDefault("extractor.min_text_length", 100)
	v.SetDefault("extractor.ocr_command", "ocrmypdf")
	v.SetDefault("extractor.ocr_language", "por")
	v.SetDefault("extractor.ocr_timeout", 10*time.Minute)

	v.SetDefault("rag.chunk_size", 1000)
	v.SetDefault("rag.chunk_overlap", 150)
	v.SetDefault("rag.top_n", 5)
	v.SetDefault("rag.stop_words", []string{
		"a", "o", "e", "de", "do", "da", "para", "com", "um", "uma", "qual",
		"quais", "em", "os", "as", "dos", "das", "é", "foi", "pela", "pelo",
		"são", "me", "diga", "então", "eu", "quero", "saber", "pra", "quem",
		"ela", "ele", "mim", "seu", "sua",
	})
	v.SetDefault("rag.index_concurrency", 2)

	v.SetDefault("vector_store.backend", "sqlite")
	v.SetDefault("vector_store.path", "./data/vectors.db")
	v.SetDefault("vector_store.url", "http://localhost:6333")
	v.SetDefault("vector_store.collection", "documentos_familiares")
	v.SetDefault("vector_store.dimensions", 768)

	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.embedding_model", "nomic-embed-text")
	v.SetDefault("llm.llm_model", "llama3:instruct")
	v.SetDefault("llm.timeout", 120*time.Second)

	v.SetDefault("chat.bot_name", "Jarvis")
	v.SetDefault("chat.greetings", []string{
		"oi", "olá", "ola", "bom dia", "boa tarde", "boa noite", "e ai",
		"eae", "tudo bem", "jarvis", "opa",
	})
	v.SetDefault("chat.farewells", []string{
		"não", "nao", "nada", "obrigado", "obrigada", "tchau", "sair",
		"fim", "encerrar", "mais nada", "só isso", "so isso",
	})
	v.SetDefault("chat.greeting_template",
		"Olá, {name}! Eu sou o {bot}, o assistente do Oráculo Familiar. O que você gostaria de saber sobre os documentos da família?")
	v.SetDefault("chat.farewell_message", "Até mais! Se precisar de algo, é só chamar.")
	v.SetDefault("chat.system_prompt",
		"Você é {bot}, um assistente de IA prestativo e espirituoso do 'Oráculo Familiar'. "+
			"Sua tarefa é responder a NOVA PERGUNTA do usuário baseando-se estritamente no CONTEXTO (extraído de documentos familiares) "+
			"e no HISTÓRICO DA CONVERSA, se for relevante.\n"+
			"Se a informação não estiver no CONTEXTO, diga '{marker}'. "+
			"Mantenha um tom profissional, mas com um toque sutil de sagacidade.")
	v.SetDefault("chat.no_info_marker", "Com base nos documentos disponíveis, não possuo dados sobre isso.")
	v.SetDefault("chat.found_suffix", "\n\nPosso ajudar com mais alguma coisa?")
	v.SetDefault("chat.not_found_suffix", "\n\nTente perguntar de outra forma ou sobre outro documento.")
	v.SetDefault("chat.error_message", "Desculpe, não consegui consultar o modelo de linguagem agora. Tente novamente em instantes.")
	v.SetDefault("chat.persist_failed_turns", false)
	v.SetDefault("chat.workers", 4)
	v.SetDefault("chat.queue_size", 16)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_hour", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate reports configuration that would make startup fail later
func (c *Config) Validate() error {
	var errs []error

	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkSize <= c.RAG.ChunkOverlap {
		errs = append(errs, fmt.Errorf("rag: chunk_size (%d) must be greater than chunk_overlap (%d) and overlap must not be negative",
			c.RAG.ChunkSize, c.RAG.ChunkOverlap))
	}
	if c.RAG.TopN <= 0 {
		errs = append(errs, fmt.Errorf("rag: top_n must be positive"))
	}
	if c.Extractor.MinTextLength <= 0 {
		errs = append(errs, fmt.Errorf("extractor: min_text_length must be positive"))
	}
	switch c.Extractor.TextLayer {
	case "native", "pdftotext":
	default:
		errs = append(errs, fmt.Errorf("extractor: unknown text_layer %q", c.Extractor.TextLayer))
	}

	switch c.LLM.Provider {
	case "ollama", "rago":
	case "openai":
		if c.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("llm: api_key is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("llm: unknown provider %q", c.LLM.Provider))
	}

	switch c.VectorStore.Backend {
	case "sqlite":
		if c.VectorStore.Path == "" {
			errs = append(errs, fmt.Errorf("vector_store: path is required for sqlite"))
		}
	case "qdrant":
		if c.VectorStore.URL == "" || c.VectorStore.Collection == "" {
			errs = append(errs, fmt.Errorf("vector_store: url and collection are required for qdrant"))
		}
		if c.VectorStore.Dimensions <= 0 {
			errs = append(errs, fmt.Errorf("vector_store: dimensions must be positive for qdrant"))
		}
	default:
		errs = append(errs, fmt.Errorf("vector_store: unknown backend %q", c.VectorStore.Backend))
	}

	if c.Chat.Workers <= 0 {
		errs = append(errs, fmt.Errorf("chat: workers must be positive"))
	}

	return errors.Join(errs...)
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
