package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridviz/gridviz/internal/storage"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gridviz version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gridviz version %s\n", version)
	},
}

// --- create ---

var createCmd = &cobra.Command{
	Use:   "create <request>",
	Short: "Create a visualization from a plain-English request",
	Long: `Create a visualization from a plain-English request.

Examples:
  gridviz create "west hub prices for the last day"
  gridviz create --user 7 --type chart "grid stress right now"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		userID, _ := cmd.Flags().GetInt64("user")
		kind, _ := cmd.Flags().GetString("type")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/visualizations", map[string]any{
			"user_id": userID,
			"request": text,
			"type":    kind,
		})
		if err != nil {
			return err
		}

		var result struct {
			VisualizationID string `json:"visualization_id"`
			DataSource      string `json:"data_source"`
			SQL             string `json:"sql_query"`
			DashboardURL    string `json:"dashboard_url"`
			EmbedURL        string `json:"embed_url"`
			Status          string `json:"status"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Created visualization %s", result.VisualizationID)
		printStatus("Source", "%s", result.DataSource)
		printStatus("SQL", "%s", result.SQL)
		printStatus("Dashboard", "%s", result.DashboardURL)
		printStatus("Embed", "%s", result.EmbedURL)
		return nil
	},
}

func init() {
	createCmd.Flags().Int64("user", 1, "numeric user id")
	createCmd.Flags().String("type", "chart", "visualization kind")
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent visualizations for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/api/visualizations?user_id=%d&limit=%d", userID, limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Visualizations []storage.Visualization `json:"visualizations"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Visualizations) == 0 {
			fmt.Println("No visualizations found.")
			return nil
		}

		for _, v := range result.Visualizations {
			text := v.RequestText
			if len(text) > 60 {
				text = text[:60] + "..."
			}
			fmt.Printf("%s  %s  %-10s  %s\n",
				styled(ansiCyan, v.ID[:8]),
				v.CreatedAt.Format(time.RFC3339),
				v.Status,
				text,
			)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Int64("user", 1, "numeric user id")
	listCmd.Flags().Int("limit", 20, "maximum number of results")
}

// --- panels ---

var panelsCmd = &cobra.Command{
	Use:   "panels",
	Short: "List a user's dashboard panel bindings",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/api/dashboard/panels?user_id=%d", userID)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Panels []storage.PanelBinding `json:"panels"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Panels) == 0 {
			fmt.Println("No panels found.")
			return nil
		}

		for _, p := range result.Panels {
			visible := " "
			if p.IsVisible {
				visible = "*"
			}
			fmt.Printf("%s %2d  %s  %s\n",
				visible, p.PanelOrder,
				styled(ansiCyan, p.PanelID),
				p.PanelName,
			)
		}
		return nil
	},
}

func init() {
	panelsCmd.Flags().Int64("user", 1, "numeric user id")
}
