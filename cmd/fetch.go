package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/trends-scraper/internal/trends"
)

type fetchOptions struct {
	geo      string
	language string
	hours    int
	category string
	sort     string
	status   string
	url      string
	asJSON   bool
}

func newFetchCmd() *cobra.Command {
	var opts fetchOptions
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch trends and print them to the console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			defer appInstance.Close()
			q := opts.query(cmd)
			appInstance.Logger().Info("fetching trends",
				zap.String("geo", q.Geo),
				zap.String("hl", q.Language),
			)
			collection, err := appInstance.Service().Fetch(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("error fetching trends: %w", err)
			}
			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(collection); err != nil {
					return fmt.Errorf("encode collection: %w", err)
				}
				return nil
			}
			return printCollection(cmd.OutOrStdout(), collection)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.geo, "geo", trends.DefaultGeo, "location code")
	flags.StringVar(&opts.language, "hl", trends.DefaultLanguage, "interface language")
	flags.IntVar(&opts.hours, "hours", 0, "hours to look back")
	flags.StringVar(&opts.category, "category", "", "category filter")
	flags.StringVar(&opts.sort, "sort", "", "sort method")
	flags.StringVar(&opts.status, "status", "", "status filter")
	flags.StringVar(&opts.url, "url", "", "fetch this URL instead of building one")
	flags.BoolVar(&opts.asJSON, "json", false, "print the collection as JSON")
	return cmd
}

// query converts flags into a trends.Query; flags that were not given stay unset.
func (o fetchOptions) query(cmd *cobra.Command) trends.Query {
	q := trends.Query{Geo: o.geo, Language: o.language}
	if cmd.Flags().Changed("hours") {
		hours := o.hours
		q.Hours = &hours
	}
	if o.category != "" {
		q.Category = trends.StringPtr(o.category)
	}
	if o.sort != "" {
		q.Sort = trends.StringPtr(o.sort)
	}
	if o.status != "" {
		q.Status = trends.StringPtr(o.status)
	}
	if o.url != "" {
		q.URL = trends.StringPtr(o.url)
	}
	return q
}

func printCollection(w io.Writer, c trends.Collection) error {
	rule := strings.Repeat("=", 50)
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "Google Trends for %s (%s)\n", c.Location, c.Language)
	fmt.Fprintf(&b, "Total trends: %d\n", c.TotalTrends)
	fmt.Fprintf(&b, "Timestamp: %s\n", c.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Source: %s\n", c.SourceURL)
	fmt.Fprintf(&b, "%s\n", rule)

	for i, topic := range c.Topics {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, topic.Title)
		if topic.SearchVolume != nil && *topic.SearchVolume != "" {
			fmt.Fprintf(&b, "   Search Volume: %s\n", *topic.SearchVolume)
		}
		if topic.ChangePercentage != nil && *topic.ChangePercentage != "" {
			fmt.Fprintf(&b, "   Change: %s\n", *topic.ChangePercentage)
		}
		if topic.URL != nil && *topic.URL != "" {
			fmt.Fprintf(&b, "   URL: %s\n", *topic.URL)
		}
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write collection: %w", err)
	}
	return nil
}
