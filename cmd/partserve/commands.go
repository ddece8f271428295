package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/partserve/internal/api"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask the parts assistant a question",
	Long: `Ask the parts assistant a question about refrigerator or dishwasher parts.

Examples:
  partserve chat "my dishwasher is not draining"
  partserve chat "which door gasket fits a WDT780SAEM1"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/api/chat", api.ChatRequest{Query: query})
		if err != nil {
			return err
		}

		var result api.ChatResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, result.Response)
		if result.PartInfo != nil {
			fmt.Fprintln(os.Stdout)
			printPart(*result.PartInfo)
		}
		return nil
	},
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over the parts knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/api/search", api.SearchRequest{Query: query})
		if err != nil {
			return err
		}

		var result api.SearchResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Results) == 0 {
			printWarning("No matching entries")
			return nil
		}

		for _, r := range result.Results {
			header := fmt.Sprintf("[%.3f] part %s (%s)", r.Score, r.PartID, r.Appliance)
			fmt.Fprintln(os.Stdout, colorize(colorBold, header))
			fmt.Fprintf(os.Stdout, "  Q: %s\n  A: %s\n", r.Question, r.Answer)
		}
		return nil
	},
}

// --- part ---

var partCmd = &cobra.Command{
	Use:   "part <part-id>",
	Short: "Look up a part record by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/api/part/" + args[0])
		if err != nil {
			return err
		}

		var view api.PartView
		if err := decodeJSON(resp, &view); err != nil {
			return err
		}

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}

		printPart(view)
		return nil
	},
}

func init() {
	partCmd.Flags().Bool("json", false, "print the raw JSON record")
}

func printPart(v api.PartView) {
	printStatus("Part", "%s", v.PartID)
	printStatus("Name", "%s", v.PartInfo.Name)
	printStatus("Price", "$%.2f", v.PartInfo.Price)
	printStatus("Appliance", "%s", v.Appliance)
	if v.PartInfo.ProductURL != "" {
		printStatus("URL", "%s", v.PartInfo.ProductURL)
	}
	for k, val := range v.PartInfo.Attributes {
		printStatus(k, "%s", val)
	}
}
