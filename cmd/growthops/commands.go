package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tripwire24/tw-experiment-engine/internal/config"
	"github.com/tripwire24/tw-experiment-engine/internal/model"
	"github.com/tripwire24/tw-experiment-engine/internal/views"
)

// --- board ---

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Manage experiment boards",
}

var boardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List boards",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/boards")
		if err != nil {
			return err
		}

		var boards []model.Board
		if err := decodeJSON(resp, &boards); err != nil {
			return err
		}

		for _, b := range boards {
			fmt.Printf("%s  %s\n", colorize(colorCyan, b.ID), colorize(colorBold, b.Name))
			if b.Description != "" {
				fmt.Printf("    %s\n", b.Description)
			}
		}
		return nil
	},
}

var boardCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/boards", map[string]string{
			"name":        args[0],
			"description": description,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Created board %s (%s)", args[0], result["id"])
		return nil
	},
}

var boardEditCmd = &cobra.Command{
	Use:   "edit <id> <name>",
	Short: "Rename a board",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/boards/"+args[0], map[string]string{
			"name":        args[1],
			"description": description,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Updated board %s", args[0])
		return nil
	},
}

var boardShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a board as a kanban snapshot with analytics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		boardID := args[0]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var (
			experiments []model.Experiment
			analytics   views.Analytics
		)
		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			resp, err := client.get(ctx, "/experiments?board="+url.QueryEscape(boardID))
			if err != nil {
				return err
			}
			return decodeJSON(resp, &experiments)
		})
		g.Go(func() error {
			resp, err := client.get(ctx, "/analytics?board="+url.QueryEscape(boardID))
			if err != nil {
				return err
			}
			return decodeJSON(resp, &analytics)
		})
		if err := g.Wait(); err != nil {
			return err
		}

		columns := views.KanbanColumns(experiments)
		for _, status := range model.StatusOrder {
			fmt.Printf("\n%s\n", colorize(colorBold, model.StatusLabels[status]))
			for _, e := range columns[status] {
				fmt.Printf("  %s  %s  [ICE %s]\n", colorize(colorCyan, e.ID), e.Title, e.ICEScoreString())
			}
		}

		fmt.Println()
		printStatus("Active", "%d", analytics.ActiveCount)
		printStatus("Completed", "%d", analytics.CompletedCount)
		printStatus("Average ICE", "%s", analytics.AverageICE)
		return nil
	},
}

func init() {
	boardCreateCmd.Flags().String("description", "", "board description")
	boardEditCmd.Flags().String("description", "", "board description")
	boardCmd.AddCommand(boardListCmd)
	boardCmd.AddCommand(boardCreateCmd)
	boardCmd.AddCommand(boardEditCmd)
	boardCmd.AddCommand(boardShowCmd)
}

// --- experiment ---

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Manage experiments",
}

var experimentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments, optionally filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		for _, flag := range []string{"board", "search", "status", "result", "market", "type"} {
			if v, _ := cmd.Flags().GetString(flag); v != "" {
				q.Set(flag, v)
			}
		}
		path := "/experiments"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var experiments []model.Experiment
		if err := decodeJSON(resp, &experiments); err != nil {
			return err
		}

		if len(experiments) == 0 {
			fmt.Println("No experiments found.")
			return nil
		}

		for _, e := range experiments {
			extra := ""
			if e.Result != "" {
				extra = "  " + colorize(colorYellow, string(e.Result))
			}
			fmt.Printf("%s  %-10s  %s  [ICE %s]%s\n",
				colorize(colorCyan, e.ID),
				e.Status,
				e.Title,
				e.ICEScoreString(),
				extra,
			)
		}
		return nil
	},
}

var experimentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single experiment as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/experiments/"+args[0])
		if err != nil {
			return err
		}

		var experiment any
		if err := decodeJSON(resp, &experiment); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(experiment)
	},
}

var experimentAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a new experiment",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.Join(args, " ")
		board, _ := cmd.Flags().GetString("board")
		description, _ := cmd.Flags().GetString("description")
		impact, _ := cmd.Flags().GetInt("impact")
		confidence, _ := cmd.Flags().GetInt("confidence")
		ease, _ := cmd.Flags().GetInt("ease")
		market, _ := cmd.Flags().GetString("market")
		expType, _ := cmd.Flags().GetString("type")
		tagsStr, _ := cmd.Flags().GetString("tags")

		var tags []string
		if tagsStr != "" {
			tags = strings.Split(tagsStr, ",")
			for i := range tags {
				tags[i] = strings.TrimSpace(tags[i])
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"board_id":       board,
			"title":          title,
			"description":    description,
			"ice_impact":     impact,
			"ice_confidence": confidence,
			"ice_ease":       ease,
			"market":         market,
			"type":           expType,
		}
		if tags != nil {
			req["tags"] = tags
		}

		resp, err := client.post(cmd.Context(), "/experiments", req)
		if err != nil {
			return err
		}

		var exp model.Experiment
		if err := decodeJSON(resp, &exp); err != nil {
			return err
		}

		printSuccess("Created experiment %s (ICE %s)", exp.ID, exp.ICEScoreString())
		return nil
	},
}

var experimentMoveCmd = &cobra.Command{
	Use:   "move <id> <status>",
	Short: "Move an experiment to another pipeline status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/experiments/"+args[0]+"/status", map[string]string{
			"status": args[1],
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Moved %s to %s", args[0], args[1])
		return nil
	},
}

var experimentArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive an experiment into the learnings vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/experiments/"+args[0]+"/archive", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Archived %s", args[0])
		return nil
	},
}

var experimentCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Complete an experiment (requires a recorded result; locks it)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, _ := cmd.Flags().GetString("result")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if result != "" {
			resp, err := client.patch(cmd.Context(), "/experiments/"+args[0], map[string]string{
				"result": result,
			})
			if err != nil {
				return err
			}
			var patched model.Experiment
			if err := decodeJSON(resp, &patched); err != nil {
				return err
			}
		}

		resp, err := client.post(cmd.Context(), "/experiments/"+args[0]+"/complete", nil)
		if err != nil {
			return err
		}

		var status map[string]string
		if err := decodeJSON(resp, &status); err != nil {
			return err
		}

		printSuccess("Completed %s (locked)", args[0])
		return nil
	},
}

var experimentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This permanently deletes the experiment. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/experiments/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted %s", args[0])
		return nil
	},
}

var experimentAnalyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show aggregate experiment statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		board, _ := cmd.Flags().GetString("board")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/analytics"
		if board != "" {
			path += "?board=" + url.QueryEscape(board)
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var a views.Analytics
		if err := decodeJSON(resp, &a); err != nil {
			return err
		}

		printStatus("Active", "%d", a.ActiveCount)
		printStatus("Completed", "%d", a.CompletedCount)
		printStatus("Average ICE", "%s", a.AverageICE)
		for label, counts := range map[string]map[string]int{"By type": a.ByType, "By market": a.ByMarket, "By status": a.ByStatus} {
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
			}
			printStatus(label, "%s", strings.Join(parts, " "))
		}
		return nil
	},
}

func init() {
	experimentListCmd.Flags().String("board", "", "filter by board id")
	experimentListCmd.Flags().String("search", "", "text search over title, description, and tags")
	experimentListCmd.Flags().String("status", "", "filter by pipeline status")
	experimentListCmd.Flags().String("result", "", "filter by result (won, lost, inconclusive, pending)")
	experimentListCmd.Flags().String("market", "", "filter by market")
	experimentListCmd.Flags().String("type", "", "filter by experiment type")

	experimentAddCmd.Flags().String("board", "", "board id (required)")
	experimentAddCmd.Flags().String("description", "", "what the experiment tests")
	experimentAddCmd.Flags().Int("impact", 5, "ICE impact rating 1-10")
	experimentAddCmd.Flags().Int("confidence", 5, "ICE confidence rating 1-10")
	experimentAddCmd.Flags().Int("ease", 5, "ICE ease rating 1-10")
	experimentAddCmd.Flags().String("market", "", "target market code")
	experimentAddCmd.Flags().String("type", "", "experiment type")
	experimentAddCmd.Flags().String("tags", "", "comma-separated tags")

	experimentCompleteCmd.Flags().String("result", "", "record a result first (won, lost, inconclusive)")
	experimentDeleteCmd.Flags().Bool("confirm", false, "confirm deletion")
	experimentAnalyticsCmd.Flags().String("board", "", "restrict to one board")

	experimentCmd.AddCommand(experimentListCmd)
	experimentCmd.AddCommand(experimentShowCmd)
	experimentCmd.AddCommand(experimentAddCmd)
	experimentCmd.AddCommand(experimentMoveCmd)
	experimentCmd.AddCommand(experimentArchiveCmd)
	experimentCmd.AddCommand(experimentCompleteCmd)
	experimentCmd.AddCommand(experimentDeleteCmd)
	experimentCmd.AddCommand(experimentAnalyticsCmd)
}

// --- comment ---

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Comment on experiments",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <experiment-id> <text>",
	Short: "Add a comment to an experiment",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args[1:], " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/experiments/"+args[0]+"/comments", map[string]string{
			"text": text,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Comment added to %s", args[0])
		return nil
	},
}

func init() {
	commentCmd.AddCommand(commentAddCmd)
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}

		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a profile field (full_name, bio, linkedin_url, contact_email)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/profile", map[string]any{key: value})
		if err != nil {
			return err
		}

		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
