package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/grindapp/grind/internal/config"
)

type catalogEntry struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	Difficulty     string `json:"difficulty"`
	URL            string `json:"url"`
	IsPremium      bool   `json:"is_premium"`
	AcceptanceRate string `json:"acceptance_rate"`
}

type problem struct {
	ID          int64   `json:"id"`
	ExternalID  int     `json:"external_id"`
	Title       string  `json:"title"`
	Difficulty  string  `json:"difficulty"`
	URL         string  `json:"url"`
	Notes       string  `json:"notes"`
	DateAdded   string  `json:"date_added"`
	ReviewCount int     `json:"review_count"`
	NextReview  *string `json:"next_review"`
}

type review struct {
	ID         int64  `json:"id"`
	Confidence int    `json:"confidence"`
	Notes      string `json:"notes"`
	CreatedAt  string `json:"created_at"`
}

func fetchProblemList(ctx context.Context, client *apiClient, path string) ([]problem, error) {
	resp, err := client.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var problems []problem
	if err := decodeJSON(resp, &problems); err != nil {
		return nil, err
	}
	return problems, nil
}

func formatDay(value string) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.Local().Format("2006-01-02")
}

func printCatalogEntry(e catalogEntry) {
	premium := ""
	if e.IsPremium {
		premium = colorize(colorYellow, " [premium]")
	}
	fmt.Printf("%s %s (%s, %s)%s\n",
		colorize(colorCyan, fmt.Sprintf("#%d", e.ID)),
		colorize(colorBold, e.Title),
		e.Difficulty,
		e.AcceptanceRate,
		premium,
	)
	fmt.Printf("   %s\n", e.URL)
}

func printProblem(p problem) {
	next := "not scheduled"
	if p.NextReview != nil {
		next = formatDay(*p.NextReview)
	}
	fmt.Printf("%s %s (%s)  reviews: %d  next: %s\n",
		colorize(colorCyan, fmt.Sprintf("#%d", p.ExternalID)),
		colorize(colorBold, p.Title),
		p.Difficulty,
		p.ReviewCount,
		next,
	)
	if p.Notes != "" {
		fmt.Printf("   %s\n", p.Notes)
	}
}

// --- lookup ---

var lookupCmd = &cobra.Command{
	Use:   "lookup <id>",
	Short: "Look up a problem in the catalog by number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/catalog/problems/"+args[0])
		if err != nil {
			return err
		}

		var entry catalogEntry
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}

		printCatalogEntry(entry)
		return nil
	},
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the catalog by title",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		query := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/catalog/problems?q=%s&limit=%d", url.QueryEscape(query), limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var entries []catalogEntry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No matches found.")
			return nil
		}
		for _, e := range entries {
			printCatalogEntry(e)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 20, "maximum number of results")
}

// --- add ---

var addCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Save a catalog problem to your practice list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid problem number %q", args[0])
		}
		notes, _ := cmd.Flags().GetString("notes")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{"problem_id": id}
		if notes != "" {
			body["notes"] = notes
		}
		resp, err := client.post(cmd.Context(), "/problems", body)
		if err != nil {
			return err
		}

		var saved problem
		if err := decodeJSON(resp, &saved); err != nil {
			return err
		}

		next := ""
		if saved.NextReview != nil {
			next = ", first review " + formatDay(*saved.NextReview)
		}
		printSuccess("Added %s (%s)%s", saved.Title, saved.Difficulty, next)
		return nil
	},
}

func init() {
	addCmd.Flags().String("notes", "", "initial notes for the problem")
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved problems, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		problems, err := fetchProblemList(cmd.Context(), client, "/problems")
		if err != nil {
			return err
		}

		if len(problems) == 0 {
			fmt.Println("No problems saved yet. Use 'grind add <id>' to start.")
			return nil
		}
		for _, p := range problems {
			printProblem(p)
		}
		return nil
	},
}

// --- due ---

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List problems due for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		problems, err := fetchProblemList(cmd.Context(), client, "/problems/due")
		if err != nil {
			return err
		}

		if len(problems) == 0 {
			printSuccess("Nothing due. You're all caught up.")
			return nil
		}
		for _, p := range problems {
			printProblem(p)
		}
		return nil
	},
}

// --- review ---

var reviewCmd = &cobra.Command{
	Use:   "review <id>",
	Short: "Record a review with a confidence score (1-5)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confidence, _ := cmd.Flags().GetInt("confidence")
		notes, _ := cmd.Flags().GetString("notes")
		if confidence == 0 {
			return fmt.Errorf("--confidence is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{"confidence": confidence}
		if notes != "" {
			body["notes"] = notes
		}
		resp, err := client.post(cmd.Context(), "/problems/"+args[0]+"/review", body)
		if err != nil {
			return err
		}

		var result struct {
			Review  review  `json:"review"`
			Problem problem `json:"problem"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		next := "not scheduled"
		if result.Problem.NextReview != nil {
			next = formatDay(*result.Problem.NextReview)
		}
		printSuccess("Recorded review #%d for %s, next review %s",
			result.Problem.ReviewCount, result.Problem.Title, next)
		return nil
	},
}

func init() {
	reviewCmd.Flags().Int("confidence", 0, "confidence score from 1 (struggled) to 5 (instant recall)")
	reviewCmd.Flags().String("notes", "", "notes about this review session")
}

// --- notes ---

var notesCmd = &cobra.Command{
	Use:   "notes <id> <text>",
	Short: "Replace the notes on a saved problem",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/problems/"+args[0], map[string]any{"notes": args[1]})
		if err != nil {
			return err
		}

		var updated problem
		if err := decodeJSON(resp, &updated); err != nil {
			return err
		}

		printSuccess("Updated notes for %s", updated.Title)
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show review history for a saved problem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/problems/"+args[0]+"/reviews")
		if err != nil {
			return err
		}

		var reviews []review
		if err := decodeJSON(resp, &reviews); err != nil {
			return err
		}

		if len(reviews) == 0 {
			fmt.Println("No reviews recorded yet.")
			return nil
		}
		for _, r := range reviews {
			line := fmt.Sprintf("%s  confidence %d", formatDay(r.CreatedAt), r.Confidence)
			if r.Notes != "" {
				line += "  " + r.Notes
			}
			fmt.Println(line)
		}
		return nil
	},
}

// --- remove ---

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a saved problem and its review history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/problems/"+args[0])
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		printSuccess("Removed problem %s", args[0])
		return nil
	},
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
