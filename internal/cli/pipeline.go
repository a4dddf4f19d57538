package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/oraculo/internal/domain"
	"github.com/liliang-cn/oraculo/internal/service"
)

func updateCMD(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Catalog new PDFs and index everything pending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ingest, err := a.orch.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := ingest.Update(cmd.Context())
			printCatalogSummary(cmd, summary.Catalog)
			printIndexSummary(cmd, summary.Index)
			return err
		},
	}
}

func catalogCMD(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [folder]",
		Short: "Catalog the PDFs of a folder",
		Long: `Fingerprints, extracts and records every PDF directly under the folder.
Files already cataloged (same content) are skipped. Defaults to storage.documents.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Storage.Documents
			if len(args) == 1 {
				dir = args[0]
			}
			ingest, err := a.orch.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := ingest.CatalogFolder(cmd.Context(), dir)
			if err != nil {
				return err
			}
			printCatalogSummary(cmd, summary)
			return nil
		},
	}
}

func indexCMD(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Index cataloged documents that have text and no vectors yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			indexer, err := a.orch.Indexer(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := indexer.IndexPending(cmd.Context())
			printIndexSummary(cmd, summary)
			return err
		},
	}
}

func searchCMD(a *app) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search indexed documents without calling the language model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			retriever, err := a.orch.Retriever(cmd.Context())
			if err != nil {
				return err
			}
			query := args[0]
			results, err := retriever.Retrieve(cmd.Context(), query, limit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			resp := domain.SearchResponse{Keywords: retriever.Keywords(query), Results: results}
			if asJSON {
				data, err := json.MarshalIndent(resp, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal results: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			cmd.Printf("Keywords: %v\n", resp.Keywords)
			if len(results) == 0 {
				cmd.Println("No results found.")
				return nil
			}
			printSources(cmd, results, true)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (default rag.top_n)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func printCatalogSummary(cmd *cobra.Command, s service.CatalogSummary) {
	cmd.Printf("Catalog: %d found, %d inserted, %d duplicates, %d without text, %d failed, %d used OCR\n",
		s.Found, s.Inserted, s.Duplicates, s.NoText, s.Failed, s.UsedOCR)
}

func printIndexSummary(cmd *cobra.Command, s service.IndexSummary) {
	cmd.Printf("Index: %d documents indexed (%d chunks), %d skipped, %d failed\n",
		s.Indexed, s.Chunks, s.Skipped, s.Failed)
}

func printSources(cmd *cobra.Command, chunks []domain.RetrievedChunk, withText bool) {
	for i, c := range chunks {
		cmd.Printf("[%d] %s (chunk %d) distance %.4f\n", i+1, c.FileName, c.ChunkIndex, c.Distance)
		if withText {
			cmd.Printf("    %s\n", truncate(c.Text, 200))
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
