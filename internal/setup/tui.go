// Package setup provides the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/suenot/etf-monitor/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

const generatedConfigFile = "config.gen.yaml"

// RunTUI launches the terminal configuration wizard and writes the resulting
// yaml config next to the binary.
func RunTUI() error {
	var (
		basket       []string
		reserveStr   = "5"
		deviationStr = "5"
		minOrderStr  = "1000"
		intervalStr  = "24h"
		sleepStr     = "3s"
		thresholdStr = "0.02"
		dryRun       = true
		confirm      bool
	)

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("ETF MONITOR CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Set up your portfolio rebalancer.\n"))

	fmt.Println(stepStyle.Render("STEP 1: BASKET"))
	basketOptions := make([]huh.Option[string], 0, len(config.DefaultBasket))
	for _, ticker := range config.DefaultBasket {
		basketOptions = append(basketOptions, huh.NewOption(ticker, ticker).Selected(true))
	}
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Select funds to track").
				Options(basketOptions...).
				Value(&basket).
				Validate(func(selected []string) error {
					if len(selected) == 0 {
						return fmt.Errorf("pick at least one fund")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("ETF MONITOR CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: THRESHOLDS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cash reserve %").
				Description("Share of portfolio kept in rubles (0-100)").
				Value(&reserveStr).
				Validate(validatePercent),
			huh.NewInput().
				Title("Max deviation %").
				Description("Weight drift that triggers a trade (e.g. 5)").
				Value(&deviationStr).
				Validate(validatePercent),
			huh.NewInput().
				Title("Min order value").
				Description("Smallest order worth sending, in rubles").
				Value(&minOrderStr).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Volatility threshold").
				Description("Hourly (high-low)/open above this is too noisy (e.g. 0.02)").
				Value(&thresholdStr).
				Validate(validateDecimal),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("ETF MONITOR CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Rebalance interval").
				Description("Duration string (e.g. 12h, 24h)").
				Value(&intervalStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("Sleep between orders").
				Description("Pause between submitted orders (e.g. 3s)").
				Value(&sleepStr).
				Validate(validateDuration),
			huh.NewConfirm().
				Title("Dry run?").
				Description("Log orders without sending them").
				Value(&dryRun),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("ETF MONITOR CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Funds: %s\nCash reserve: %s%%\nMax deviation: %s%%\nMin order: %s\nInterval: %s\nDry run: %v\n",
		strings.Join(basket, " "), reserveStr, deviationStr, minOrderStr, intervalStr, dryRun,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	interval, _ := time.ParseDuration(intervalStr)
	sleep, _ := time.ParseDuration(sleepStr)

	tmp := config.Tmp{
		Basket:              basket,
		CashReservePercent:  reserveStr,
		MaxDeviationPercent: deviationStr,
		MinOrderValue:       minOrderStr,
		SleepBetweenOrders:  sleep,
		RebalanceInterval:   interval,
		VolatilityThreshold: thresholdStr,
		DryRun:              &dryRun,
	}
	if _, err := config.FromTmp(tmp); err != nil {
		return fmt.Errorf("generated config failed validation: %w", err)
	}

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(generatedConfigFile, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render("\nSaved " + generatedConfigFile))
	fmt.Println("Set " + config.EnvToken + " and " + config.EnvAccountID + " in your environment, then run:")
	fmt.Println("  etf-monitor --config " + generatedConfigFile)
	return nil
}

func validatePercent(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if d.Sign() < 0 || d.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("must be between 0 and 100")
	}
	return nil
}

func validateDecimal(s string) error {
	if _, err := decimal.NewFromString(s); err != nil {
		return fmt.Errorf("not a number")
	}
	return nil
}

func validateDuration(s string) error {
	_, err := time.ParseDuration(s)
	return err
}
