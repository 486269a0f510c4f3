package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrygo/bookcircle/internal/version"
	"github.com/hrygo/bookcircle/plugin/markdown"
	"github.com/hrygo/bookcircle/plugin/tagging"
)

// newScanCmd prints the tags found in the given text as JSON.
func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <text>",
		Short: "List the mentions and hashtags found in text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tags := tagging.Scan(strings.Join(args, " "))
			if tags == nil {
				tags = []tagging.ParsedTag{}
			}
			return writeJSON(cmd, tags)
		},
	}
}

// newRenderCmd renders text without stored taggings, as segments or as HTML.
func newRenderCmd() *cobra.Command {
	var (
		html           bool
		mentionsAsText bool
	)
	cmd := &cobra.Command{
		Use:   "render <text>",
		Short: "Render text with hashtags linked",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			opts := tagging.RenderOptions{}
			if mentionsAsText {
				opts.UnresolvedMention = tagging.MentionAsText
			}
			if !html {
				return writeJSON(cmd, tagging.Render(text, nil, opts))
			}

			md := markdown.NewService(markdown.WithTagExtension(), markdown.WithRenderOptions(opts))
			out, err := md.RenderHTML([]byte(text), tagging.NewResolver(nil, opts))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "render markdown to HTML")
	cmd.Flags().BoolVar(&mentionsAsText, "mentions-as-text", false, "render unresolved mentions as plain text")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bookcircle %s\n", version.Version)
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
