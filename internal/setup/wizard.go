// Package setup implements the interactive camnotify setup wizard.
package setup

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/Fullex26/camnotify/internal/config"
	"github.com/Fullex26/camnotify/internal/notifiers"
	"github.com/Fullex26/camnotify/pkg/models"
)

const DefaultEnvPath = config.DefaultEnvPath

// defaultConfigTemplate is written when no config file exists yet.
const defaultConfigTemplate = `# camnotify configuration
# https://github.com/Fullex26/camnotify

# ── Notification channels (configure at least one) ──
notifications:
  webhook:
    enabled: false
    url: ""
    method: "POST"           # DELETE, GET, PATCH, POST or PUT
    authentication: "none"   # none, basic or bearer
    username: ""
    password: ""
    token: ""
    field: "image"
    send_image: true
    send_types: false
    cameras: []              # empty = every camera

  discord:
    enabled: false
    webhook_url: "${CAMNOTIFY_DISCORD_WEBHOOK}"
    send_image: true
    cameras: []

  ntfy:
    enabled: false
    topic: "camnotify"
    server: "https://ntfy.sh"
    token: ""
    send_image: true
    cameras: []

  telegram:
    enabled: false
    bot_token: "${CAMNOTIFY_TELEGRAM_TOKEN}"
    chat_id: "${CAMNOTIFY_TELEGRAM_CHAT_ID}"
    send_image: true
    cameras: []

# ── Detection inbox ──
watch:
  enabled: false
  dir: "/var/lib/camnotify/inbox"

# ── Alert behaviour ──
alerts:
  cooldown: "1m"

http:
  timeout: "30s"

store:
  path: "/var/lib/camnotify/dispatches.db"
  retention_days: 30

metrics:
  enabled: false
  addr: ":9464"

log:
  level: "info"
  format: "text"
`

type wizardCreds struct {
	envVars    map[string]string // written to env file
	ntfyTopic  string            // written directly into config (not secret)
	ntfyServer string
	ntfyToken  string

	webhookMethod    string
	webhookAuth      models.AuthorizationMethod
	webhookUser      string
	webhookSendImage bool
	webhookSendTypes bool
}

// Run is the entry point for the interactive setup wizard.
func Run(configPath, envPath string) error {
	fmt.Println()
	fmt.Println("📷 camnotify Setup")
	fmt.Println("──────────────────")
	fmt.Println()

	if err := ensureConfig(configPath); err != nil {
		return err
	}

	r := bufio.NewReader(os.Stdin)

	// ── Mode ────────────────────────────────────────────────────
	fmt.Println("  Choose setup mode:")
	fmt.Println("    [1] Simple   — guided setup with sensible defaults  (recommended)")
	fmt.Println("    [2] Advanced — configure every option")
	fmt.Println()
	fmt.Print("  Selection [1]: ")

	advanced := readLine(r) == "2"
	fmt.Println()

	// ── Notifier ─────────────────────────────────────────────────
	fmt.Println("  Choose a notification channel:")
	fmt.Println("    [1] Webhook  (any HTTP endpoint)")
	fmt.Println("    [2] Discord")
	fmt.Println("    [3] ntfy.sh  (push notifications, no account needed)")
	fmt.Println("    [4] Telegram")
	fmt.Println()
	fmt.Print("  Selection [1]: ")

	var notifier string
	switch readLine(r) {
	case "2":
		notifier = "discord"
	case "3":
		notifier = "ntfy"
	case "4":
		notifier = "telegram"
	default:
		notifier = "webhook"
	}
	fmt.Println()

	// ── Credentials ──────────────────────────────────────────────
	creds, err := collectCredentials(r, notifier)
	if err != nil {
		return err
	}

	// ── Write env file ───────────────────────────────────────────
	if len(creds.envVars) > 0 {
		if err := writeEnvFile(envPath, creds.envVars); err != nil {
			return fmt.Errorf("writing env file: %w", err)
		}
		// Set in current process so the test subprocess inherits them.
		for k, v := range creds.envVars {
			_ = os.Setenv(k, v)
		}
		fmt.Printf("  ✅ Credentials saved to %s\n", envPath)
	}

	// ── Update config ─────────────────────────────────────────────
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	updated := applyCredentials(string(configData), notifier, creds)
	if err := os.WriteFile(configPath, []byte(updated), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Printf("  ✅ Config updated: %s\n", configPath)
	fmt.Println()

	// ── Detection inbox ───────────────────────────────────────────
	updated = collectInbox(r, updated)
	if err := os.WriteFile(configPath, []byte(updated), 0600); err != nil {
		return fmt.Errorf("writing config (inbox): %w", err)
	}

	// ── Advanced settings ─────────────────────────────────────────
	if advanced {
		updated = collectAdvanced(r, updated)
		if err := os.WriteFile(configPath, []byte(updated), 0600); err != nil {
			return fmt.Errorf("writing config (advanced): %w", err)
		}
		fmt.Println()
	}

	// ── Test notification ─────────────────────────────────────────
	fmt.Print("  Send a test notification? [Y/n]: ")
	if readBool(r, true) {
		fmt.Print("  Sending... ")
		if err := runTest(configPath, envPath); err != nil {
			fmt.Printf("\n  ⚠️  Test failed: %v\n", err)
			fmt.Println("  Check your credentials, then retry: sudo camnotify test")
		} else {
			fmt.Println("✅")
		}
	}
	fmt.Println()

	// ── Start service ─────────────────────────────────────────────
	fmt.Print("  Enable and start camnotify service? [Y/n]: ")
	if readBool(r, true) {
		if err := startService(); err != nil {
			fmt.Printf("  ⚠️  %v\n", err)
			fmt.Println("  Start manually: sudo systemctl enable --now camnotify")
		} else {
			fmt.Println("  ✅ Service enabled and started!")
		}
	}

	fmt.Println()
	fmt.Println("✅ Setup complete!")
	fmt.Println("   Run 'sudo camnotify status' to see recent dispatches.")
	fmt.Println()
	return nil
}

// ensureConfig creates the config file from the default template if absent.
func ensureConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0600); err != nil {
		return fmt.Errorf("creating default config: %w", err)
	}
	fmt.Printf("  Created default config: %s\n\n", path)
	return nil
}

// collectCredentials prompts for notifier-specific settings and secrets.
func collectCredentials(r *bufio.Reader, notifier string) (wizardCreds, error) {
	c := wizardCreds{envVars: make(map[string]string)}

	switch notifier {
	case "webhook":
		return collectWebhook(r)

	case "discord":
		fmt.Println("  Discord")
		fmt.Println("  ──────────────────────────────────────────────────────────")
		fmt.Println("  Server Settings → Integrations → Webhooks → New Webhook")
		fmt.Println()

		u, err := readMasked(r, "  Webhook URL: ")
		if err != nil {
			return c, err
		}
		if err := c.setSecret("CAMNOTIFY_DISCORD_WEBHOOK", strings.TrimSpace(u)); err != nil {
			return c, err
		}

	case "ntfy":
		fmt.Println("  ntfy.sh")
		fmt.Println("  ──────────────────────────────────────────────────────────")
		fmt.Println("  Subscribe to your topic in the ntfy app to receive snapshots.")
		fmt.Println()

		fmt.Print("  Topic name [camnotify]: ")
		topic := strings.TrimSpace(readLine(r))
		if topic == "" {
			topic = "camnotify"
		}
		fmt.Print("  Server     [https://ntfy.sh]: ")
		server := strings.TrimSpace(readLine(r))
		if server == "" {
			server = "https://ntfy.sh"
		}
		token, err := readMasked(r, "  Access token (optional, Enter to skip): ")
		if err != nil {
			return c, err
		}
		c.ntfyTopic = topic
		c.ntfyServer = server
		c.ntfyToken = strings.TrimSpace(token)

	case "telegram":
		fmt.Println("  Telegram")
		fmt.Println("  ──────────────────────────────────────────────────────────")
		fmt.Println("  1. Open Telegram and message @BotFather → /newbot")
		fmt.Println("  2. Get your Chat ID by messaging @userinfobot")
		fmt.Println()

		token, err := readMasked(r, "  Bot token:  ")
		if err != nil {
			return c, err
		}
		fmt.Print("  Chat ID:    ")
		chatID := readLine(r)
		if err := c.setSecret("CAMNOTIFY_TELEGRAM_TOKEN", strings.TrimSpace(token)); err != nil {
			return c, err
		}
		if err := c.setSecret("CAMNOTIFY_TELEGRAM_CHAT_ID", strings.TrimSpace(chatID)); err != nil {
			return c, err
		}
	}

	fmt.Println()
	return c, nil
}

// collectWebhook asks for the endpoint, verb, authentication and payload options.
func collectWebhook(r *bufio.Reader) (wizardCreds, error) {
	c := wizardCreds{envVars: make(map[string]string)}

	fmt.Println("  Webhook")
	fmt.Println("  ──────────────────────────────────────────────────────────")
	fmt.Println("  camnotify sends the snapshot as multipart/form-data to this URL.")
	fmt.Println()

	u, err := readMasked(r, "  URL: ")
	if err != nil {
		return c, err
	}
	if err := c.setSecret("CAMNOTIFY_WEBHOOK_URL", strings.TrimSpace(u)); err != nil {
		return c, err
	}

	fmt.Print("  Method [POST]: ")
	c.webhookMethod = strings.TrimSpace(readLine(r))
	if c.webhookMethod == "" {
		c.webhookMethod = "POST"
	}
	if _, err := notifiers.ParseMethod(c.webhookMethod); err != nil {
		fmt.Printf("  ⚠️  %q is not supported, using POST\n", c.webhookMethod)
		c.webhookMethod = "POST"
	}

	fmt.Println("  Authentication:")
	fmt.Println("    [1] None")
	fmt.Println("    [2] Basic  (username + password)")
	fmt.Println("    [3] Bearer (token)")
	fmt.Print("  Selection [1]: ")
	switch readLine(r) {
	case "2":
		c.webhookAuth = models.AuthBasic
		fmt.Print("  Username: ")
		c.webhookUser = strings.TrimSpace(readLine(r))
		pass, err := readMasked(r, "  Password: ")
		if err != nil {
			return c, err
		}
		if err := c.setSecret("CAMNOTIFY_WEBHOOK_PASSWORD", pass); err != nil {
			return c, err
		}
	case "3":
		c.webhookAuth = models.AuthBearer
		token, err := readMasked(r, "  Token: ")
		if err != nil {
			return c, err
		}
		if err := c.setSecret("CAMNOTIFY_WEBHOOK_TOKEN", strings.TrimSpace(token)); err != nil {
			return c, err
		}
	default:
		c.webhookAuth = models.AuthNone
	}

	fmt.Print("  Attach the snapshot? [Y/n]: ")
	c.webhookSendImage = readBool(r, true)
	fmt.Print("  Attach the detected types? [y/N]: ")
	c.webhookSendTypes = readBool(r, false)

	fmt.Println()
	return c, nil
}

// setSecret queues key for the env file, refusing values the file cannot hold.
func (c *wizardCreds) setSecret(key, value string) error {
	if !envStorable(value) {
		return fmt.Errorf("the value for %s mixes ' with \", \\, $ or a line break and cannot be stored in the env file; "+
			"rerun setup with a placeholder, then set %s in the env file by hand", key, key)
	}
	c.envVars[key] = value
	return nil
}

// applyCredentials updates the config YAML for the selected notifier.
func applyCredentials(cfg, notifier string, c wizardCreds) string {
	cfg = setInBlock(cfg, notifier, "    enabled: false", "    enabled: true")

	switch notifier {
	case "ntfy":
		cfg = setInBlock(cfg, "ntfy", `    topic: "camnotify"`, fmt.Sprintf(`    topic: "%s"`, c.ntfyTopic))
		cfg = setInBlock(cfg, "ntfy", `    server: "https://ntfy.sh"`, fmt.Sprintf(`    server: "%s"`, c.ntfyServer))
		if c.ntfyToken != "" {
			cfg = setInBlock(cfg, "ntfy", `    token: ""`, fmt.Sprintf(`    token: "%s"`, c.ntfyToken))
		}
	case "webhook":
		// Secrets stay in the env file; config.Load expands the placeholders at runtime.
		cfg = setInBlock(cfg, "webhook", `    url: ""`, `    url: "${CAMNOTIFY_WEBHOOK_URL}"`)
		if c.webhookMethod != "" {
			cfg = setInBlock(cfg, "webhook", `    method: "POST"`, fmt.Sprintf(`    method: "%s"`, c.webhookMethod))
		}
		cfg = setInBlock(cfg, "webhook", `    authentication: "none"`, fmt.Sprintf(`    authentication: "%s"`, c.webhookAuth))
		switch c.webhookAuth {
		case models.AuthBasic:
			cfg = setInBlock(cfg, "webhook", `    username: ""`, fmt.Sprintf(`    username: "%s"`, c.webhookUser))
			cfg = setInBlock(cfg, "webhook", `    password: ""`, `    password: "${CAMNOTIFY_WEBHOOK_PASSWORD}"`)
		case models.AuthBearer:
			cfg = setInBlock(cfg, "webhook", `    token: ""`, `    token: "${CAMNOTIFY_WEBHOOK_TOKEN}"`)
		}
		cfg = setInBlock(cfg, "webhook", "    send_image: true", fmt.Sprintf("    send_image: %t", c.webhookSendImage))
		cfg = setInBlock(cfg, "webhook", "    send_types: false", fmt.Sprintf("    send_types: %t", c.webhookSendTypes))
	}

	return cfg
}

// setInBlock replaces old with replacement within the YAML block that begins
// with "  {notifier}:\n". The block ends at the first non-empty line whose
// indentation is less than 4 spaces (i.e. a sibling or parent key).
func setInBlock(cfg, notifier, old, replacement string) string {
	marker := "  " + notifier + ":\n"
	idx := strings.Index(cfg, marker)
	if idx == -1 {
		return cfg
	}

	after := cfg[idx+len(marker):]

	end := len(after)
	pos := 0
	for pos < len(after) {
		nl := strings.IndexByte(after[pos:], '\n')
		if nl == -1 {
			break
		}
		line := after[pos : pos+nl]
		if len(line) > 0 && !strings.HasPrefix(line, "    ") {
			end = pos
			break
		}
		pos += nl + 1
	}

	block := strings.Replace(after[:end], old, replacement, 1)
	return cfg[:idx+len(marker)] + block + after[end:]
}

// collectInbox asks whether to watch a directory for detection sidecars.
func collectInbox(r *bufio.Reader, cfg string) string {
	fmt.Println("  ── Detection Inbox ────────────────────────────────────────")
	fmt.Println("  camnotify can watch a directory for <snapshot>.json sidecars")
	fmt.Println("  written by your detection pipeline and notify on each one.")
	fmt.Println()

	fmt.Print("  Watch an inbox directory? [Y/n]: ")
	if !readBool(r, true) {
		fmt.Println()
		return cfg
	}
	cfg = strings.Replace(cfg, "watch:\n  enabled: false", "watch:\n  enabled: true", 1)

	fmt.Print("  Inbox directory [/var/lib/camnotify/inbox]: ")
	if v := strings.TrimSpace(readLine(r)); v != "" {
		cfg = strings.Replace(cfg, `  dir: "/var/lib/camnotify/inbox"`, fmt.Sprintf(`  dir: "%s"`, v), 1)
	}
	fmt.Println("  ✅ Inbox watching enabled")
	fmt.Println()
	return cfg
}

// collectAdvanced prompts for optional advanced configuration options.
func collectAdvanced(r *bufio.Reader, cfg string) string {
	fmt.Println("  ── Advanced Settings ──────────────────────────────────────")
	fmt.Println("  (Press Enter to keep the default shown in brackets)")
	fmt.Println()

	fmt.Print("  Repeat cooldown per camera (default: 1m): ")
	if v := strings.TrimSpace(readLine(r)); v != "" && v != "1m" {
		cfg = strings.Replace(cfg, `  cooldown: "1m"`, fmt.Sprintf(`  cooldown: "%s"`, v), 1)
	}

	fmt.Print("  Request timeout (default: 30s): ")
	if v := strings.TrimSpace(readLine(r)); v != "" && v != "30s" {
		cfg = strings.Replace(cfg, `  timeout: "30s"`, fmt.Sprintf(`  timeout: "%s"`, v), 1)
	}

	fmt.Print("  Keep dispatch history for N days (default: 30): ")
	if v := strings.TrimSpace(readLine(r)); v != "" && v != "30" {
		cfg = strings.Replace(cfg, "  retention_days: 30", "  retention_days: "+v, 1)
	}

	fmt.Print("  Expose Prometheus metrics on :9464? [y/N]: ")
	if readBool(r, false) {
		cfg = strings.Replace(cfg, "metrics:\n  enabled: false", "metrics:\n  enabled: true", 1)
	}

	fmt.Print("  Log level [debug/info/warn/error] (default: info): ")
	if v := strings.TrimSpace(readLine(r)); v != "" && v != "info" {
		cfg = strings.Replace(cfg, `  level: "info"`, fmt.Sprintf(`  level: "%s"`, v), 1)
	}

	return cfg
}

// writeEnvFile writes KEY=value pairs to path (one per line, mode 0600).
func writeEnvFile(path string, vars map[string]string) error {
	var sb strings.Builder
	for k, v := range vars {
		if !envStorable(v) {
			return fmt.Errorf("%s cannot be stored in %s", k, path)
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(quoteEnv(v))
		sb.WriteByte('\n')
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sb.String()), 0600)
}

// envStorable reports whether godotenv reads quoteEnv(v) back as v.
// Single quotes are literal but cannot hold a single quote, and a trailing
// backslash escapes the closing quote. Double quotes expand $VAR and
// backslash escapes.
func envStorable(v string) bool {
	if strings.ContainsAny(v, "\r\n") || strings.HasSuffix(v, `\`) {
		return false
	}
	return !strings.Contains(v, "'") || !strings.ContainsAny(v, `"\$`)
}

// quoteEnv quotes a value that envStorable accepted.
func quoteEnv(v string) string {
	if !strings.Contains(v, "'") {
		return "'" + v + "'"
	}
	return `"` + v + `"`
}

// runTest invokes the current binary's "test" subcommand to verify notifiers.
func runTest(configPath, envPath string) error {
	self, err := os.Executable()
	if err != nil {
		self = "camnotify"
	}
	cmd := exec.Command(self, "--config", configPath, "--env-file", envPath, "test")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// startService enables and starts the camnotify systemd service.
func startService() error {
	out, err := exec.Command("systemctl", "enable", "--now", "camnotify").CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// readLine reads one line from r, stripping the trailing newline.
func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

// isTerminal is swapped out in tests so prompts never touch the real TTY.
var isTerminal = term.IsTerminal

// readMasked reads a secret without echoing characters when stdin is a TTY.
// Falls back to plain line reading for non-interactive contexts (pipes, CI).
func readMasked(r *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if isTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(b), nil
	}
	return readLine(r), nil
}

// readBool parses a y/n response; returns defaultVal on empty input.
func readBool(r *bufio.Reader, defaultVal bool) bool {
	line := strings.ToLower(strings.TrimSpace(readLine(r)))
	if line == "" {
		return defaultVal
	}
	return line == "y" || line == "yes"
}
