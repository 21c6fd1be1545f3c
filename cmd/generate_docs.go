package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/mailpipe/internal/config"
	"github.com/teemow/mailpipe/internal/server"
)

func newGenerateDocsCmd() *cobra.Command {
	var (
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools and resources.
This command introspects the registered tools and outputs their documentation
in markdown format, so the documentation always matches the implementation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(outputFile string) error {
	// Registration needs no mailbox; handlers are never called.
	serverContext := server.NewServerContext(context.Background(), nil, nil)
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv := newMCPServer(serverContext, config.Default())

	serverTools := mcpSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, name := range slices.Sorted(maps.Keys(serverTools)) {
		tools = append(tools, serverTools[name].Tool)
	}

	markdown := generateToolsMarkdown(tools)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	} else {
		fmt.Print(markdown)
	}

	return nil
}

// Tool categories in documentation order.
const (
	categoryRetrieval = "Retrieval Tools"
	categoryLabels    = "Label Tools"
	categoryCompose   = "Compose Tools"
	categoryOther     = "Other Tools"
)

var categoryOrder = []string{categoryRetrieval, categoryLabels, categoryCompose, categoryOther}

func generateToolsMarkdown(tools []mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("This document lists the tools and resources available when running mailpipe as an MCP server.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	toolsByCategory := groupToolsByCategory(tools)

	sb.WriteString("## Table of Contents\n\n")
	for _, category := range categoryOrder {
		if len(toolsByCategory[category]) == 0 {
			continue
		}
		anchor := strings.ToLower(strings.ReplaceAll(category, " ", "-"))
		fmt.Fprintf(&sb, "- [%s](#%s)\n", category, anchor)
	}
	sb.WriteString("- [Resources](#resources)\n\n")

	sb.WriteString("## Content Delivery\n\n")
	sb.WriteString("Tools that return mail content write it to a file in a private scratch directory ")
	sb.WriteString("and return the file path, its size in bytes and compact metadata. ")
	sb.WriteString("The scratch directory is removed when the server stops.\n\n")

	for _, category := range categoryOrder {
		categoryTools := toolsByCategory[category]
		if len(categoryTools) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n", category)
		for _, tool := range categoryTools {
			sb.WriteString(generateToolMarkdown(tool))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("## Resources\n\n")
	sb.WriteString("- `gmail://messages/{message_id}`: a message rendered as Markdown\n")
	sb.WriteString("- `gmail://threads/{thread_id}`: a thread rendered as Markdown, messages in date order\n")

	return sb.String()
}

func groupToolsByCategory(tools []mcp.Tool) map[string][]mcp.Tool {
	categories := make(map[string][]mcp.Tool)
	for _, tool := range tools {
		category := getCategoryFromToolName(tool.Name)
		categories[category] = append(categories[category], tool)
	}
	for _, categoryTools := range categories {
		slices.SortFunc(categoryTools, func(a, b mcp.Tool) int {
			return strings.Compare(a.Name, b.Name)
		})
	}
	return categories
}

func getCategoryFromToolName(name string) string {
	switch {
	case strings.HasSuffix(name, "_label"), strings.HasSuffix(name, "_labels"):
		return categoryLabels
	case strings.HasPrefix(name, "create_"), strings.HasPrefix(name, "send_"):
		return categoryCompose
	case strings.HasPrefix(name, "search_"), strings.HasPrefix(name, "get_"),
		strings.HasSuffix(name, "_attachments"), strings.HasSuffix(name, "_attachment"):
		return categoryRetrieval
	default:
		return categoryOther
	}
}

func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)

	if tool.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", tool.Description)
	}

	if len(tool.InputSchema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")

		for _, name := range slices.Sorted(maps.Keys(tool.InputSchema.Properties)) {
			propMap, ok := tool.InputSchema.Properties[name].(map[string]any)
			if !ok {
				continue
			}

			requiredStr := "optional"
			if slices.Contains(tool.InputSchema.Required, name) {
				requiredStr = "required"
			}

			fmt.Fprintf(&sb, "- `%s` (%s, %s): ", name, getPropertyType(propMap), requiredStr)
			if desc, ok := propMap["description"].(string); ok {
				sb.WriteString(desc)
			} else {
				fmt.Fprintf(&sb, "%s parameter", getPropertyType(propMap))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func getPropertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}
