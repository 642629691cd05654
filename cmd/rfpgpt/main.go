package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rfpgpt/rfpgpt/internal/app"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"github.com/rfpgpt/rfpgpt/internal/profile"
	"github.com/rfpgpt/rfpgpt/internal/tui"
	"github.com/rfpgpt/rfpgpt/internal/tui/model"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var (
		vm       *model.ViewModel
		defaults chat.Settings
	)
	fxApp := fx.New(
		app.Module(app.Params{Profile: profileName}),
		fx.Provide(model.NewViewModel),
		fx.Populate(&vm, &defaults),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ui := tui.NewApp(vm, profileName, defaults)
	runErr := ui.Run()
	ui.Stop()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
