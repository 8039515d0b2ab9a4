package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pageforge/pageforge/pkg/pageforge"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("pageforge version %s\n", version)
	case "validate":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		os.Exit(validate(os.Args[2]))
	case "inspect":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		os.Exit(inspect(os.Args[2]))
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("pageforge - declarative document layout engine")
	fmt.Println("\nUsage: pageforge <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  validate <layout.json>    Validate a layout tree")
	fmt.Println("  inspect <layout.json>     List the expressions a layout references")
	fmt.Println("  version                   Show version information")
}

func loadLayout(path string) (*pageforge.LayoutNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}
	var root pageforge.LayoutNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse layout file: %w", err)
	}
	return &root, nil
}

func newEngine() (*pageforge.Engine, error) {
	registry := pageforge.NewRendererRegistry()
	if err := pageforge.RegisterBuiltinRenderers(registry); err != nil {
		return nil, err
	}
	return pageforge.NewEngine(registry), nil
}

func validate(path string) int {
	root, err := loadLayout(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	engine, err := newEngine()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer engine.Close()

	result := engine.ValidateLayout(root)
	fmt.Printf("checked %d nodes: %d errors, %d warnings\n",
		result.Summary.CheckedNodes, result.Summary.ErrorCount, result.Summary.WarningCount)
	for _, issue := range result.Issues {
		fmt.Printf("  [%s] %s %s: %s\n", issue.Severity, issue.ID, issue.Path, issue.Message)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func inspect(path string) int {
	root, err := loadLayout(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	refs := pageforge.ExtractLayoutReferences(root)
	if len(refs) == 0 {
		fmt.Println("no expressions found")
		return 0
	}
	for _, ref := range refs {
		fmt.Printf("%s %s: %s", ref.Path, ref.Property, ref.Expression)
		if len(ref.Variables) > 0 {
			fmt.Printf(" (uses: %v)", ref.Variables)
		}
		fmt.Println()
	}
	return 0
}
