package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	payloadDocumentKey    = "document"
	payloadChunkIDKey     = "chunk_id"
	payloadDocumentIDKey  = "document_id"
	payloadDisplayNameKey = "display_name"
	payloadChunkIndexKey  = "chunk_index"
	maxErrorBodyBytes     = 1024
	minScanPage           = 32
)

var pointIDNamespace = uuid.MustParse("6f1c2a4e-3b7d-4c1e-9a55-0d2f8e1b7c90")

// OperationErrorCode classifies Qdrant failures.
type OperationErrorCode string

const (
	OperationErrorValidation      OperationErrorCode = "validation_failed"
	OperationErrorEncodeFailed    OperationErrorCode = "encode_failed"
	OperationErrorDecodeFailed    OperationErrorCode = "decode_failed"
	OperationErrorTransportFailed OperationErrorCode = "transport_failed"
	OperationErrorTimeout         OperationErrorCode = "timeout"
	OperationErrorRequestFailed   OperationErrorCode = "request_failed"
)

// OperationError describes a failed Qdrant call.
type OperationError struct {
	Code       OperationErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("qdrant %s failed (code=%s status=%d): %s: %v", e.Operation, e.Code, e.StatusCode, e.Message, e.Cause)
	}
	return fmt.Sprintf("qdrant %s failed (code=%s status=%d): %s", e.Operation, e.Code, e.StatusCode, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

func opErr(op string, code OperationErrorCode, msg string, cause error) error {
	return &OperationError{Code: code, Operation: op, Message: msg, Cause: cause}
}

// QdrantConfig holds the connection settings.
type QdrantConfig struct {
	URL        string
	Collection string
	Dimensions int
	Timeout    time.Duration
}

// QdrantIndex stores records in a Qdrant collection over its REST API.
type QdrantIndex struct {
	cfg     QdrantConfig
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	// tokenized is set when the collection carries a full-text index on the
	// document field; match.text then compares words instead of substrings.
	tokenized bool
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// NewQdrant connects to Qdrant and creates the collection when missing.
func NewQdrant(ctx context.Context, cfg QdrantConfig, logger *zap.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.Collection) == "" {
		return nil, opErr("bootstrap", OperationErrorValidation, "url and collection are required", nil)
	}
	if cfg.Dimensions <= 0 {
		return nil, opErr("bootstrap", OperationErrorValidation, "dimensions must be positive", nil)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	q := &QdrantIndex{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.Named("vectorstore.qdrant"),
	}
	if err := q.ensureCollection(ctx); err != nil {
		return nil, err
	}

	q.logger.Info("Qdrant vector store selected",
		zap.String("url", q.baseURL),
		zap.String("collection", cfg.Collection),
		zap.Int("vector_dim", cfg.Dimensions),
	)
	return q, nil
}

// Upsert writes records with deterministic point IDs derived from the chunk ID.
func (q *QdrantIndex) Upsert(ctx context.Context, records []Record) error {
	const op = "upsert"
	if len(records) == 0 {
		return nil
	}

	points := make([]map[string]any, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.ID) == "" {
			return opErr(op, OperationErrorValidation, "record id is required", nil)
		}
		if len(r.Vector) != q.cfg.Dimensions {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("record %q dimension mismatch: expected=%d got=%d", r.ID, q.cfg.Dimensions, len(r.Vector)), nil)
		}
		points = append(points, map[string]any{
			"id":     pointID(r.ID),
			"vector": r.Vector,
			"payload": map[string]any{
				payloadChunkIDKey:     r.ID,
				payloadDocumentKey:    r.Document,
				payloadDocumentIDKey:  r.Metadata.DocumentID,
				payloadDisplayNameKey: r.Metadata.DisplayName,
				payloadChunkIndexKey:  r.Metadata.ChunkIndex,
			},
		})
	}

	return q.doJSON(ctx, op, http.MethodPut, q.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

// Query searches by cosine similarity. Without a full-text index Qdrant's
// match.text is a substring test, so the filter runs before the limit. On a
// tokenized collection the filter is applied locally while paging through
// results until n eligible hits are found.
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, n int, filter *Filter) ([]Match, error) {
	const op = "query"
	if len(vector) != q.cfg.Dimensions {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", q.cfg.Dimensions, len(vector)), nil)
	}
	if n <= 0 {
		return []Match{}, nil
	}

	pushDown := filter != nil && !q.tokenized
	page := n
	if filter != nil && q.tokenized {
		page = max(n*4, minScanPage)
	}

	out := make([]Match, 0, n)
	for offset := 0; ; offset += page {
		req := map[string]any{
			"vector":       vector,
			"limit":        page,
			"offset":       offset,
			"with_payload": true,
			"with_vector":  false,
		}
		if pushDown {
			req["filter"] = translateFilter(filter)
		}

		var raw []qdrantSearchResultItem
		if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/search"), req, &raw); err != nil {
			return nil, err
		}
		for _, item := range raw {
			m := matchFromPayload(item)
			if m.ID == "" || !filter.Matches(m.Document) {
				continue
			}
			out = append(out, m)
		}
		if len(out) >= n || len(raw) < page {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance == out[j].Distance {
			return out[i].ID < out[j].ID
		}
		return out[i].Distance < out[j].Distance
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Count returns the exact number of points in the collection.
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	if err := q.doJSON(ctx, "count", http.MethodPost, q.collectionPath("/points/count"), map[string]any{"exact": true}, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// Close releases idle connections.
func (q *QdrantIndex) Close() error {
	q.http.CloseIdleConnections()
	return nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	const op = "bootstrap"

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
		PayloadSchema map[string]struct {
			DataType string `json:"data_type"`
		} `json:"payload_schema"`
	}
	err := q.doJSON(ctx, op, http.MethodGet, q.collectionPath(""), nil, &info)
	if err == nil {
		if size := info.Config.Params.Vectors.Size; size != 0 && size != q.cfg.Dimensions {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("collection %q vector size mismatch: expected=%d actual=%d", q.cfg.Collection, q.cfg.Dimensions, size), nil)
		}
		if schema, ok := info.PayloadSchema[payloadDocumentKey]; ok && schema.DataType == "text" {
			q.tokenized = true
			q.logger.Warn("collection has a full-text index on the document field; keyword filters run locally",
				zap.String("collection", q.cfg.Collection))
		}
		return nil
	}

	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) || opErrTyped.StatusCode != http.StatusNotFound {
		return err
	}

	create := map[string]any{
		"vectors": map[string]any{"size": q.cfg.Dimensions, "distance": "Cosine"},
	}
	if err := q.doJSON(ctx, op, http.MethodPut, q.collectionPath(""), create, nil); err != nil {
		return err
	}
	q.logger.Info("Qdrant collection created", zap.String("collection", q.cfg.Collection))
	return nil
}

func (q *QdrantIndex) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode envelope failed", err)
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode result failed", err)
	}
	return nil
}

func (q *QdrantIndex) collectionPath(suffix string) string {
	return "/collections/" + q.cfg.Collection + suffix
}

// translateFilter maps $contains to a text match and $or to "should".
func translateFilter(f *Filter) map[string]any {
	if len(f.Or) == 0 {
		return map[string]any{"must": []any{textCondition(f.Contains)}}
	}
	should := make([]any, 0, len(f.Or))
	for _, kw := range f.Keywords() {
		should = append(should, textCondition(kw))
	}
	return map[string]any{"should": should}
}

func textCondition(kw string) map[string]any {
	return map[string]any{
		"key":   payloadDocumentKey,
		"match": map[string]any{"text": kw},
	}
}

func matchFromPayload(item qdrantSearchResultItem) Match {
	m := Match{Distance: 1 - item.Score}
	m.ID, _ = item.Payload[payloadChunkIDKey].(string)
	m.Document, _ = item.Payload[payloadDocumentKey].(string)
	m.Metadata.DisplayName, _ = item.Payload[payloadDisplayNameKey].(string)
	if v, ok := item.Payload[payloadDocumentIDKey].(float64); ok {
		m.Metadata.DocumentID = int64(v)
	}
	if v, ok := item.Payload[payloadChunkIndexKey].(float64); ok {
		m.Metadata.ChunkIndex = int(v)
	}
	return m
}

func pointID(chunkID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(chunkID)).String()
}

func classifyHTTPCallError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, "request timed out", err)
	}
	return opErr(op, OperationErrorTransportFailed, "request failed", err)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
