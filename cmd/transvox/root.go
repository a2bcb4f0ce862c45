package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"transvox/internal/config"
)

type commandContext struct {
	serverFlag *string
	configFlag *string
	userFlag   *string
	tokenFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(serverFlag, configFlag, userFlag, tokenFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		configFlag: configFlag,
		userFlag:   userFlag,
		tokenFlag:  tokenFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// baseURL resolves the daemon address: the --server flag wins, then the
// configured api_bind.
func (c *commandContext) baseURL() (string, error) {
	if c.serverFlag != nil {
		if server := strings.TrimSpace(*c.serverFlag); server != "" {
			if strings.HasPrefix(server, "http://") || strings.HasPrefix(server, "https://") {
				return strings.TrimRight(server, "/"), nil
			}
			return "http://" + server, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return "", fmt.Errorf("no daemon address: set --server or paths.api_bind")
	}
	return "http://" + bind, nil
}

// identity resolves the submitter identity sent as X-User-ID.
func (c *commandContext) identity() string {
	if c.userFlag != nil {
		if user := strings.TrimSpace(*c.userFlag); user != "" {
			return user
		}
	}
	if user := strings.TrimSpace(os.Getenv("USER")); user != "" {
		return user
	}
	return "anonymous"
}

func (c *commandContext) token() string {
	if c.tokenFlag != nil && strings.TrimSpace(*c.tokenFlag) != "" {
		return strings.TrimSpace(*c.tokenFlag)
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		return cfg.Paths.APIToken
	}
	return ""
}

func (c *commandContext) client() (*apiClient, error) {
	base, err := c.baseURL()
	if err != nil {
		return nil, err
	}
	return newAPIClient(base, c.identity(), c.token()), nil
}

func newRootCommand() *cobra.Command {
	var serverFlag string
	var configFlag string
	var userFlag string
	var tokenFlag string

	ctx := newCommandContext(&serverFlag, &configFlag, &userFlag, &tokenFlag)

	rootCmd := &cobra.Command{
		Use:           "transvox",
		Short:         "Transvox dubbing pipeline CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Daemon address (host:port or URL)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "Submitter identity (defaults to $USER)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "API bearer token")

	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newStopCommand(ctx))
	rootCmd.AddCommand(newClearCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newHealthCommand(ctx))
	rootCmd.AddCommand(newWhoamiCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
