package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/parley/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("parley doctor")
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Discord:")
	checkItem("Token", cfg.Discord.Token != "")
	fmt.Printf("    - Bot prefix:   %q\n", cfg.Discord.BotPrefix)
	fmt.Printf("    - Auto-respond: %v\n", cfg.Discord.AutoRespond)

	fmt.Println()
	fmt.Println("  Providers:")
	checkProvider("OpenAI", cfg.Providers.OpenAI)
	checkProvider("Anthropic", cfg.Providers.Anthropic)
	checkProvider("DeepSeek", cfg.Providers.DeepSeek)
	fmt.Printf("    - Default: %s\n", cfg.Providers.Default)

	fmt.Println()
	fmt.Println("  History:")
	fmt.Printf("    - Window:       %d messages\n", cfg.History.MaxHistory)
	fmt.Printf("    - Lock timeout: %s\n", cfg.History.LockTimeout)

	if cfg.Tracing.Enabled {
		fmt.Println()
		fmt.Printf("  Tracing:  OTLP %s\n", cfg.Tracing.Endpoint)
	}
}

func checkProvider(name string, pc config.ProviderConfig) {
	if pc.APIKey != "" {
		fmt.Printf("    - %-10s OK (model %s)\n", name+":", pc.Model)
	} else {
		fmt.Printf("    - %-10s no API key\n", name+":")
	}
}

func checkItem(name string, ok bool) {
	state := "MISSING"
	if ok {
		state = "OK"
	}
	fmt.Printf("    - %-14s %s\n", name+":", state)
}
