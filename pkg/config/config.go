package config

import (
	"fmt"
	"time"
)

// Config represents the settings of the enroll service. It is loaded once at
// startup and never reloaded.
type Config struct {
	// ProjectName prefixes log files and the callback user agent
	ProjectName string `yaml:"project_name" env:"ENROLL_PROJECT_NAME"`

	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	ABM       ABMConfig       `yaml:"abm"`
	Response  ResponseConfig  `yaml:"response"`
	Callback  CallbackConfig  `yaml:"callback"`
	Policy    PolicyConfig    `yaml:"policy"`
	Selectors SelectorConfig  `yaml:"selectors"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`

	// CookieSnapshotPath is overwritten with the cookie jar after every login.
	// It is for operator diagnostics only and is never read back.
	CookieSnapshotPath string `yaml:"cookie_snapshot_path" env:"ENROLL_COOKIE_SNAPSHOT_PATH"`
}

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"ENROLL_SERVER_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// BrowserConfig configures the automated Chromium instance.
type BrowserConfig struct {
	Headless       bool   `yaml:"headless" env:"ENROLL_BROWSER_HEADLESS"`
	ExecutablePath string `yaml:"executable_path" env:"ENROLL_BROWSER_EXECUTABLE_PATH"`
	UserDataDir    string `yaml:"user_data_dir" env:"ENROLL_BROWSER_USER_DATA_DIR"`

	// KillCommand is run when a half-authenticated browser must be torn down.
	// Empty means only the playwright context is closed.
	KillCommand []string `yaml:"kill_command"`

	// Install downloads the playwright driver on first start
	Install bool `yaml:"install"`

	LoginFrame  string `yaml:"login_frame"`
	PortalFrame string `yaml:"portal_frame"`

	LoginFrameTimeout  time.Duration `yaml:"login_frame_timeout"`
	PortalProbeTimeout time.Duration `yaml:"portal_probe_timeout"`
	PortalWaitTimeout  time.Duration `yaml:"portal_wait_timeout"`
}

// ABMConfig configures the remote console and its private API.
type ABMConfig struct {
	// Mode selects the assignment backend: "api" or "ui"
	Mode string `yaml:"mode" env:"ENROLL_ABM_MODE"`

	LoginURL   string `yaml:"login_url" env:"ENROLL_ABM_LOGIN_URL"`
	DeviceURL  string `yaml:"device_url" env:"ENROLL_ABM_DEVICE_URL"`
	GraphQLURL string `yaml:"graphql_url" env:"ENROLL_ABM_GRAPHQL_URL"`

	AccountName     string `yaml:"account_name" env:"ENROLL_ABM_ACCOUNT_NAME"`
	AccountPassword string `yaml:"account_password" env:"ENROLL_ABM_PASSWORD"`

	// CompanyName is the display name of the target MDM server, used by the UI backend
	CompanyName string `yaml:"company_name" env:"ENROLL_ABM_COMPANY_NAME"`
	MdmServerID string `yaml:"mdm_server_id" env:"ENROLL_ABM_MDM_SERVER_ID"`

	ClientName     string        `yaml:"client_name"`
	ClientVersion  string        `yaml:"client_version" env:"ENROLL_ABM_CLIENT_VERSION"`
	Origin         string        `yaml:"origin"`
	UserAgent      string        `yaml:"user_agent"`
	Language       string        `yaml:"language"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ResponseConfig holds the sentinel strings reported to callers.
type ResponseConfig struct {
	Success string `yaml:"success" env:"ENROLL_RESPONSE_SUCCESS"`
	Failed  string `yaml:"failed" env:"ENROLL_RESPONSE_FAILED"`
}

// CallbackConfig configures the result dispatcher.
type CallbackConfig struct {
	// Path is appended to the caller supplied callback_base_url
	Path      string `yaml:"path" env:"ENROLL_CALLBACK_PATH"`
	UserAgent string `yaml:"user_agent"`

	// AllowedHosts are glob patterns matched against the callback host.
	// Empty allows every host.
	AllowedHosts []string      `yaml:"allowed_hosts"`
	Timeout      time.Duration `yaml:"timeout"`
}

// PolicyConfig holds the retry budgets of the assignment flow.
type PolicyConfig struct {
	RecheckAttempts       int           `yaml:"recheck_attempts"`
	RecheckDelay          time.Duration `yaml:"recheck_delay"`
	PollAttempts          int           `yaml:"poll_attempts"`
	PollInterval          time.Duration `yaml:"poll_interval"`
	MaxUnauthorized       int           `yaml:"max_unauthorized"`
	SearchRetries         int           `yaml:"search_retries"`
	SearchInputTimeout    time.Duration `yaml:"search_input_timeout"`
	SearchResultTimeout   time.Duration `yaml:"search_result_timeout"`
	SearchTypeDelay       time.Duration `yaml:"search_type_delay"`
	PasswordTypeDelay     time.Duration `yaml:"password_type_delay"`
	ElementVisibleTimeout time.Duration `yaml:"element_visible_timeout"`
}

// SelectorConfig lists the console elements the UI backend drives. The
// defaults match the zh-CN console.
type SelectorConfig struct {
	PasswordInput   string `yaml:"password_input"`
	SignInButton    string `yaml:"sign_in_button"`
	SearchInput     string `yaml:"search_input"`
	SearchClear     string `yaml:"search_clear"`
	SearchResult    string `yaml:"search_result"` // %s is replaced by the serial number
	MdmServerButton string `yaml:"mdm_server_button"`
	OperatorButton  string `yaml:"operator_button"`
	EditMdmMenuItem string `yaml:"edit_mdm_menu_item"`
	AssignDialog    string `yaml:"assign_dialog"`
	ContinueButton  string `yaml:"continue_button"`
	ConfirmButton   string `yaml:"confirm_button"`
	CompleteButton  string `yaml:"complete_button"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Dir   string `yaml:"dir" env:"ENROLL_LOG_DIR"`
	Level string `yaml:"level" env:"ENROLL_LOG_LEVEL"`
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENROLL_OTEL_ENABLED"`
	Endpoint string `yaml:"endpoint" env:"ENROLL_OTEL_ENDPOINT"`
}

// WatchdogConfig configures the supervisor process.
type WatchdogConfig struct {
	HealthURL        string        `yaml:"health_url" env:"ENROLL_WATCHDOG_HEALTH_URL"`
	Interval         time.Duration `yaml:"interval"`
	WaitAfterRestart time.Duration `yaml:"wait_after_restart"`
	Timeout          time.Duration `yaml:"timeout"`

	// RestartCommand is run when the health check fails
	RestartCommand []string `yaml:"restart_command"`
}

// Validate checks the watchdog settings. The service settings are not
// needed by the watchdog and are not checked.
func (w WatchdogConfig) Validate() error {
	if w.HealthURL == "" {
		return fmt.Errorf("watchdog.health_url is required")
	}
	if len(w.RestartCommand) == 0 {
		return fmt.Errorf("watchdog.restart_command is required")
	}
	if w.Interval <= 0 || w.WaitAfterRestart < 0 {
		return fmt.Errorf("watchdog intervals must be positive")
	}
	return nil
}

const (
	// ModeAPI drives the console's private GraphQL API
	ModeAPI = "api"
	// ModeUI drives the console's DOM
	ModeUI = "ui"
)

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ABM.Mode != ModeAPI && c.ABM.Mode != ModeUI {
		return fmt.Errorf("invalid abm.mode: %s (must be 'api' or 'ui')", c.ABM.Mode)
	}

	if c.ABM.LoginURL == "" {
		return fmt.Errorf("abm.login_url is required")
	}

	if c.ABM.AccountPassword == "" {
		return fmt.Errorf("abm.account_password is required (or set ENROLL_ABM_PASSWORD)")
	}

	if c.ABM.Mode == ModeAPI {
		if c.ABM.MdmServerID == "" {
			return fmt.Errorf("abm.mdm_server_id is required in api mode")
		}
		if c.ABM.ClientVersion == "" {
			return fmt.Errorf("abm.client_version is required in api mode")
		}
	}

	if c.ABM.Mode == ModeUI {
		if c.ABM.CompanyName == "" {
			return fmt.Errorf("abm.company_name is required in ui mode")
		}
		if c.ABM.DeviceURL == "" {
			return fmt.Errorf("abm.device_url is required in ui mode")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	if c.Response.Success == "" || c.Response.Failed == "" {
		return fmt.Errorf("response.success and response.failed are required")
	}
	if c.Response.Success == c.Response.Failed {
		return fmt.Errorf("response.success and response.failed must differ")
	}

	if c.Policy.RecheckAttempts < 1 || c.Policy.PollAttempts < 1 {
		return fmt.Errorf("policy attempts must be at least 1")
	}
	if c.Policy.MaxUnauthorized < 0 {
		return fmt.Errorf("policy.max_unauthorized cannot be negative")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level)
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}

	return nil
}

// Default returns a configuration with every constant filled in. Credentials,
// the target MDM server and the client version still have to be supplied.
func Default() *Config {
	return &Config{
		ProjectName: "enroll",
		Server: ServerConfig{
			Port:            1234,
			ShutdownTimeout: 10 * time.Second,
		},
		Browser: BrowserConfig{
			LoginFrame:         "aid-auth-widget",
			PortalFrame:        "MainPortal",
			LoginFrameTimeout:  30 * time.Second,
			PortalProbeTimeout: 5 * time.Second,
			PortalWaitTimeout:  30 * time.Second,
		},
		ABM: ABMConfig{
			Mode:           ModeAPI,
			LoginURL:       "https://business.apple.com/",
			DeviceURL:      "https://business.apple.com/#/main/devices",
			GraphQLURL:     "https://ws.business.apple.com/mdm/api/graphql",
			ClientName:     "MainPortal",
			Origin:         "https://business.apple.com",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			Language:       "zh-hans-cn, zh-cn",
			RequestTimeout: 60 * time.Second,
		},
		Response: ResponseConfig{
			Success: "SUCCESS",
			Failed:  "FAILED",
		},
		Callback: CallbackConfig{
			Path:      "/api/rpa/callback",
			UserAgent: "enroll/1.0.0",
			Timeout:   30 * time.Second,
		},
		Policy: PolicyConfig{
			RecheckAttempts:       6,
			RecheckDelay:          8 * time.Second,
			PollAttempts:          60,
			PollInterval:          time.Second,
			MaxUnauthorized:       3,
			SearchRetries:         5,
			SearchInputTimeout:    90 * time.Second,
			SearchResultTimeout:   9 * time.Second,
			SearchTypeDelay:       500 * time.Millisecond,
			PasswordTypeDelay:     100 * time.Millisecond,
			ElementVisibleTimeout: 30 * time.Second,
		},
		Selectors: SelectorConfig{
			PasswordInput:   "#password_text_field",
			SignInButton:    "#sign-in",
			SearchInput:     `input[type="text"][placeholder="搜索"]`,
			SearchClear:     `xpath=//button[@aria-label="清除搜索内容" and @class="css-fb97us"]`,
			SearchResult:    `xpath=//span[contains(text(), "%s")]`,
			MdmServerButton: `button.css-1armx2e[role="button"][type="button"]`,
			OperatorButton:  `button.css-uglbp4[aria-label="操作"]`,
			EditMdmMenuItem: `ui-menu-item[role="menuitem"][aria-label="编辑 MDM 服务器"]`,
			AssignDialog:    `xpath=//h6[text()="分配至以下 MDM："]`,
			ContinueButton:  `xpath=//button[text()="继续" and @class="css-16rixhw"]`,
			ConfirmButton:   `xpath=//button[text()="确认" and @class="css-16rixhw"]`,
			CompleteButton:  `xpath=//button[text()="完成" and @class="css-1pawoxc"]`,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Watchdog: WatchdogConfig{
			HealthURL:        "http://127.0.0.1:1234/health",
			Interval:         30 * time.Second,
			WaitAfterRestart: 60 * time.Second,
			Timeout:          10 * time.Second,
		},
		CookieSnapshotPath: "business-apple-all-cookies.json",
	}
}
