package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/smarttask/internal/auth"
	"github.com/nhle/smarttask/internal/credential"
	"github.com/nhle/smarttask/internal/model"
	"github.com/nhle/smarttask/internal/notify"
	"github.com/nhle/smarttask/internal/settings"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <user-id> <text>",
	Short: "Analyze a task description with the language model",
	Args:  cobra.MinimumNArgs(2),
	RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		extra, _ := cmd.Flags().GetString("context")

		result, err := e.engine.Analyze(cmd.Context(), model.AnalysisRequest{
			Text:    strings.Join(args[1:], " "),
			Context: extra,
		}, userID)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	}),
}

var reportCmd = &cobra.Command{
	Use:   "report <user-id>",
	Short: "Print a productivity report for recently completed tasks",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			return fmt.Errorf("--days must be positive")
		}

		report, err := e.tasks.ProductivityReport(cmd.Context(), userID, time.Now().AddDate(0, 0, -days))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d task(s), %dh since %s\n\n%s\n",
			report.CompletedTasks, report.TotalHours, report.Since.Format("2006-01-02"), report.Narrative)
		return nil
	}),
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification utilities",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test <user-id>",
	Short: "Send the WhatsApp test message to a user",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		outcome, err := e.prefs.SendTest(cmd.Context(), userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "delivered via %s\n", outcome.Channel)
		return nil
	}),
}

var notifyRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reminder and overdue pass for the current minute",
	RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
		sched := notify.New(e.store, e.gateway, e.cfg.Scheduler.Workers)
		now := time.Now()
		if err := sched.SendScheduledNotifications(cmd.Context(), now); err != nil {
			return err
		}
		if err := sched.SendOverdueAlerts(cmd.Context(), now); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), e.registry.Snapshot())
		return nil
	}),
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
		username := strings.TrimSpace(args[0])
		email, _ := cmd.Flags().GetString("email")
		password, err := optionalSecret(cmd, "password", "Password", "Leave empty to create the user without a login")
		if err != nil {
			return err
		}

		exists, err := e.store.UsernameExists(cmd.Context(), username)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("username %q is taken", username)
		}

		user := &model.User{Username: username, Email: strings.TrimSpace(email)}
		if password != "" {
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			user.PasswordHash = hash
		}
		if err := e.store.CreateUser(cmd.Context(), user); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %d\n", user.ID)
		return nil
	}),
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage per-user provider credentials",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show which credentials a user has configured",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		view, err := e.settings.Get(cmd.Context(), userID)
		if err != nil {
			return err
		}
		return printJSON(cmd, view)
	}),
}

// settingFlags maps flag names onto the settings request fields. Secret
// flags given without a value are prompted for.
var settingFlags = []struct {
	name   string
	usage  string
	secret bool
	field  func(r *settings.Request) **string
}{
	{"ai-key", "language-model API key", true, func(r *settings.Request) **string { return &r.AIKey }},
	{"twilio-sid", "Twilio account SID", true, func(r *settings.Request) **string { return &r.MessagingSID }},
	{"twilio-token", "Twilio auth token", true, func(r *settings.Request) **string { return &r.MessagingToken }},
	{"sender", "WhatsApp sender number", false, func(r *settings.Request) **string { return &r.SenderNumber }},
	{"destination", "WhatsApp destination number", false, func(r *settings.Request) **string { return &r.DestinationNumber }},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <user-id>",
	Short: "Update credentials; an empty value clears a secret",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}

		var req settings.Request
		for _, f := range settingFlags {
			if !cmd.Flags().Changed(f.name) {
				continue
			}
			value, _ := cmd.Flags().GetString(f.name)
			if f.secret {
				value, _, err = secretFlag(value, true, f.usage, "Leave empty to remove it")
				if err != nil {
					return err
				}
			}
			*f.field(&req) = &value
		}

		view, err := e.settings.Update(cmd.Context(), userID, req)
		if err != nil {
			return err
		}
		return printJSON(cmd, view)
	}),
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file populated with defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := model.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cfg.Security.Secret == "" || cmd.Flags().Changed("secret") {
			secret, err := optionalSecret(cmd, "secret", "Encryption secret", "Encrypts per-user credentials; changing it later makes them unreadable")
			if err != nil {
				return err
			}
			if secret != "" {
				cfg.Security.Secret = secret
			}
		}
		if err := model.SaveConfig(configPath, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	},
}

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Store platform default secrets in the system keyring",
}

var credentialKeys = map[string]string{
	"openai":       credential.KeyOpenAI,
	"twilio-sid":   credential.KeyTwilioSID,
	"twilio-token": credential.KeyTwilioToken,
}

var credentialSetCmd = &cobra.Command{
	Use:       "set <openai|twilio-sid|twilio-token> [value]",
	Short:     "Save a platform default secret; prompts when the value is omitted",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"openai", "twilio-sid", "twilio-token"},
	RunE: func(cmd *cobra.Command, args []string) error {
		key, ok := credentialKeys[args[0]]
		if !ok {
			return fmt.Errorf("unknown credential %q", args[0])
		}
		var value string
		if len(args) == 2 {
			value = args[1]
		} else {
			var err error
			if value, err = promptSecret(args[0], "Stored in the system keyring"); err != nil {
				return err
			}
		}
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("empty value for %s", args[0])
		}
		if err := credential.Set(key, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", args[0])
		return nil
	},
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete <openai|twilio-sid|twilio-token>",
	Short: "Remove a platform default secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, ok := credentialKeys[args[0]]
		if !ok {
			return fmt.Errorf("unknown credential %q", args[0])
		}
		return credential.Delete(key)
	},
}

func init() {
	analyzeCmd.Flags().String("context", "", "additional context for the analysis")
	reportCmd.Flags().Int("days", 7, "window in days")

	userAddCmd.Flags().String("email", "", "email address")
	userAddCmd.Flags().String("password", "", "login password; omit the value to be prompted")
	userAddCmd.Flags().Lookup("password").NoOptDefVal = askValue
	_ = userAddCmd.MarkFlagRequired("email")

	for _, f := range settingFlags {
		if !f.secret {
			settingsSetCmd.Flags().String(f.name, "", f.usage)
			continue
		}
		settingsSetCmd.Flags().String(f.name, "", f.usage+"; omit the value to be prompted")
		settingsSetCmd.Flags().Lookup(f.name).NoOptDefVal = askValue
	}

	configInitCmd.Flags().String("secret", "", "credential encryption secret; omit the value to be prompted")
	configInitCmd.Flags().Lookup("secret").NoOptDefVal = askValue

	notifyCmd.AddCommand(notifyTestCmd, notifyRunCmd)
	userCmd.AddCommand(userAddCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	configCmd.AddCommand(configInitCmd)
	credentialCmd.AddCommand(credentialSetCmd, credentialDeleteCmd)
}

// optionalSecret reads a secret flag that may be left out. A bare flag
// prompts; an absent flag prompts only on a terminal and may stay empty.
func optionalSecret(cmd *cobra.Command, flag, title, description string) (string, error) {
	value, _ := cmd.Flags().GetString(flag)
	secret, ok, err := secretFlag(value, cmd.Flags().Changed(flag), title, description)
	if err != nil || ok {
		return secret, err
	}
	if !stdinIsTerminal() {
		return "", nil
	}
	return askSecret(title, description)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
