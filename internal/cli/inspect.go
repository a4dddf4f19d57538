package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func inspectCMD(a *app) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "inspect [name]",
		Short: "Show cataloged documents whose file name contains name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := a.orch.Documents()
			if err != nil {
				return err
			}
			found, err := docs.FindByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(found) == 0 {
				return fmt.Errorf("no document matches %q", args[0])
			}

			for _, d := range found {
				cmd.Printf("ID:         %d\n", d.ID)
				cmd.Printf("Name:       %s\n", d.DisplayName)
				cmd.Printf("Path:       %s\n", d.SourcePath)
				cmd.Printf("Hash:       %s\n", d.ContentHash)
				cmd.Printf("Cataloged:  %s\n", d.CatalogedAt.Format("2006-01-02 15:04:05"))
				cmd.Printf("Extraction: %s\n", d.ExtractionStatus)
				if d.ExtractionDetail != "" {
					cmd.Printf("Detail:     %s\n", d.ExtractionDetail)
				}
				cmd.Printf("Used OCR:   %t\n", d.UsedOCR)
				cmd.Printf("Indexed:    %t\n", d.Indexed)
				cmd.Printf("Characters: %d\n", len([]rune(d.Text())))
				if full {
					cmd.Println("--- text ---")
					cmd.Println(d.Text())
				} else {
					cmd.Println("--- preview ---")
					cmd.Println(d.PreviewText)
				}
				cmd.Println()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "print the full extracted text")
	return cmd
}
