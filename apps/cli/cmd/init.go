package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/uispec/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a new uispec project",
	Long: `Initialize a new uispec project.

This creates:
  - uispec.yml             - Configuration file with environments
  - burger.yaml            - Example suite for a burger constructor
  - fixtures/*.json        - Responses the suite intercepts

Examples:
  uispec init
  uispec init e2e --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleSuite = `# Example suite. Point baseUrl at the running front-end:
#   uispec run burger.yaml --env local
name: burger
baseUrl: "{{baseUrl}}"
startPath: /
unmocked: fail

intercepts:
  - {method: GET,  path: /api/ingredients, fixture: ingredients.json}
  - {method: POST, path: /api/orders,      fixture: order.json}

session:
  fixture: token.json

selectors:
  title: h1
  buns: {testid: ingredients-bun, css: ["ul:nth-of-type(1)"]}
  firstBun: {testid: ingredient-bun-1, css: ["ul:nth-of-type(1) > li:first-child"]}
  addBun: "ul:nth-of-type(1) > li:first-child > button"
  orderButton: {testid: order-button}
  modal: {testid: modal, css: ["#modals > div"]}
  modalClose: {testid: modal-close}
  modalOverlay: {testid: modal-overlay}

modals:
  details: {container: modal, close: modalClose, overlay: modalOverlay}
  order: {container: modal, close: modalClose, overlay: modalOverlay}

scenarios:
  - name: lists buns
    tags: [smoke]
    steps:
      - assert: {target: title, contains: Соберите бургер}
      - assert: {target: buns, find: li, count: 2}
      - assert: {target: modal, exists: false}

  - name: ingredient details
    tags: [modal]
    steps:
      - modal: {name: details, open: firstBun, expect: ["{{fixture(ingredients.json, data.0.name)}}"]}
      - modal: {name: details, close: overlay}

  - name: places an order
    tags: [order]
    steps:
      - click: {target: addBun, multiple: true}
      - modal: {name: order, open: orderButton, force: true, multiple: true, expect: ["{{fixture(order.json, order.number)}}"]}
      - request: {method: POST, path: /api/orders, count: 1}
      - modal: {name: order, close: control}
`

func initCommand(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	if err := os.MkdirAll(filepath.Join(dir, "fixtures"), 0o755); err != nil {
		return withExitCode(ExitConfigError, err)
	}

	configFile := filepath.Join(dir, "uispec.yml")
	suiteFile := filepath.Join(dir, "burger.yaml")

	fixtures := map[string]any{
		"ingredients.json": map[string]any{
			"success": true,
			"data": []map[string]any{
				{"_id": "bun-1", "name": "Краторная булка N-200i", "type": "bun", "price": 1255},
				{"_id": "bun-2", "name": "Флюоресцентная булка R2-D3", "type": "bun", "price": 988},
			},
		},
		"order.json": map[string]any{
			"success": true,
			"name":    "Краторный бургер",
			"order":   map[string]any{"number": 35927},
		},
		"token.json": map[string]any{
			"success":      true,
			"accessToken":  "Bearer example-access-token",
			"refreshToken": "example-refresh-token",
		},
	}

	targets := []string{configFile, suiteFile}
	for name := range fixtures {
		targets = append(targets, filepath.Join(dir, "fixtures", name))
	}
	if !forceInit {
		for _, f := range targets {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Environments = map[string]map[string]any{
		"local": {"baseUrl": "http://localhost:3000"},
		"ci":    {"baseUrl": "http://127.0.0.1:4173"},
	}
	cfg.History = ".uispec/history.db"
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(suiteFile, []byte(exampleSuite), 0o644); err != nil {
		return fmt.Errorf("failed to create example suite: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", suiteFile)

	for _, name := range []string{"ingredients.json", "order.json", "token.json"} {
		path := filepath.Join(dir, "fixtures", name)
		if err := writeFixture(path, fixtures[name]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nuispec project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'uispec run %s --env local' to execute the example scenarios.\n", suiteFile)

	return nil
}

func writeFixture(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to create fixture: %w", err)
	}
	return nil
}
