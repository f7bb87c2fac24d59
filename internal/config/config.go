// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
)

// EnvPrefix is prepended to every environment override, e.g. TRACKERPROBE_TARGET_BASE_URL.
const EnvPrefix = "TRACKERPROBE"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Target() TargetConfig
	Browser() BrowserConfig
	Wait() WaitConfig
	Upload() UploadConfig
	Fixtures() FixturesConfig
	Artifacts() ArtifactsConfig
	Report() ReportConfig
	Database() DatabaseConfig

	SetTargetBaseURL(string)
	SetBrowserHeadless(bool)
	SetReportFormat(string)
	SetReportOutput(string)
}

// Config holds the entire application configuration. Fields carry a Cfg
// suffix so the getters of Interface can keep the short names.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	TargetCfg    TargetConfig    `mapstructure:"target" yaml:"target"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	WaitCfg      WaitConfig      `mapstructure:"wait" yaml:"wait"`
	UploadCfg    UploadConfig    `mapstructure:"upload" yaml:"upload"`
	FixturesCfg  FixturesConfig  `mapstructure:"fixtures" yaml:"fixtures"`
	ArtifactsCfg ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	ReportCfg    ReportConfig    `mapstructure:"report" yaml:"report"`
	DatabaseCfg  DatabaseConfig  `mapstructure:"database" yaml:"database"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Target() TargetConfig       { return c.TargetCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Wait() WaitConfig           { return c.WaitCfg }
func (c *Config) Upload() UploadConfig       { return c.UploadCfg }
func (c *Config) Fixtures() FixturesConfig   { return c.FixturesCfg }
func (c *Config) Artifacts() ArtifactsConfig { return c.ArtifactsCfg }
func (c *Config) Report() ReportConfig       { return c.ReportCfg }
func (c *Config) Database() DatabaseConfig   { return c.DatabaseCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetTargetBaseURL(u string) { c.TargetCfg.BaseURL = u }
func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetReportFormat(f string)  { c.ReportCfg.Format = f }
func (c *Config) SetReportOutput(p string)  { c.ReportCfg.Output = p }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// TargetConfig describes the application under test.
type TargetConfig struct {
	BaseURL   string          `mapstructure:"base_url" yaml:"base_url"`
	Selectors SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
}

// SelectorsConfig is the locator contract with the target markup. A value
// starting with "/" or "(" is treated as XPath.
type SelectorsConfig struct {
	UsernameStudent     string `mapstructure:"username_student" yaml:"username_student"`
	UsernameTeacher     string `mapstructure:"username_teacher" yaml:"username_teacher"`
	Password            string `mapstructure:"password" yaml:"password"`
	Submit              string `mapstructure:"submit" yaml:"submit"`
	RoleSwitchTeacher   string `mapstructure:"role_switch_teacher" yaml:"role_switch_teacher"`
	RoleSwitchStudent   string `mapstructure:"role_switch_student" yaml:"role_switch_student"`
	SignOut             string `mapstructure:"sign_out" yaml:"sign_out"`
	AssignmentLink      string `mapstructure:"assignment_link" yaml:"assignment_link"`
	FileInput           string `mapstructure:"file_input" yaml:"file_input"`
	SubmitAssignment    string `mapstructure:"submit_assignment" yaml:"submit_assignment"`
	LoginError          string `mapstructure:"login_error" yaml:"login_error"`
	SubmissionConfirmed string `mapstructure:"submission_confirmed" yaml:"submission_confirmed"`
	HeaderTitle         string `mapstructure:"header_title" yaml:"header_title"`
	// LoginTitle is the heading of the login page, which renders no header bar.
	LoginTitle          string `mapstructure:"login_title" yaml:"login_title"`
}

// Selectors is the parsed form of SelectorsConfig.
type Selectors struct {
	UsernameStudent     schemas.Selector
	UsernameTeacher     schemas.Selector
	Password            schemas.Selector
	Submit              schemas.Selector
	RoleSwitchTeacher   schemas.Selector
	RoleSwitchStudent   schemas.Selector
	SignOut             schemas.Selector
	AssignmentLink      schemas.Selector
	FileInput           schemas.Selector
	SubmitAssignment    schemas.Selector
	LoginError          schemas.Selector
	SubmissionConfirmed schemas.Selector
	HeaderTitle         schemas.Selector
	LoginTitle          schemas.Selector
}

// Parse converts every configured string into a schemas.Selector.
func (s SelectorsConfig) Parse() Selectors {
	return Selectors{
		UsernameStudent:     schemas.ParseSelector(s.UsernameStudent),
		UsernameTeacher:     schemas.ParseSelector(s.UsernameTeacher),
		Password:            schemas.ParseSelector(s.Password),
		Submit:              schemas.ParseSelector(s.Submit),
		RoleSwitchTeacher:   schemas.ParseSelector(s.RoleSwitchTeacher),
		RoleSwitchStudent:   schemas.ParseSelector(s.RoleSwitchStudent),
		SignOut:             schemas.ParseSelector(s.SignOut),
		AssignmentLink:      schemas.ParseSelector(s.AssignmentLink),
		FileInput:           schemas.ParseSelector(s.FileInput),
		SubmitAssignment:    schemas.ParseSelector(s.SubmitAssignment),
		LoginError:          schemas.ParseSelector(s.LoginError),
		SubmissionConfirmed: schemas.ParseSelector(s.SubmissionConfirmed),
		HeaderTitle:         schemas.ParseSelector(s.HeaderTitle),
		LoginTitle:          schemas.ParseSelector(s.LoginTitle),
	}
}

// missing returns the keys of selectors left empty.
func (s SelectorsConfig) missing() []string {
	fields := map[string]string{
		"username_student":     s.UsernameStudent,
		"username_teacher":     s.UsernameTeacher,
		"password":             s.Password,
		"submit":               s.Submit,
		"role_switch_teacher":  s.RoleSwitchTeacher,
		"role_switch_student":  s.RoleSwitchStudent,
		"sign_out":             s.SignOut,
		"assignment_link":      s.AssignmentLink,
		"file_input":           s.FileInput,
		"submit_assignment":    s.SubmitAssignment,
		"login_error":          s.LoginError,
		"submission_confirmed": s.SubmissionConfirmed,
		"header_title":         s.HeaderTitle,
		"login_title":          s.LoginTitle,
	}
	var out []string
	for k, v := range fields {
		if strings.TrimSpace(v) == "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// BrowserConfig controls the Chrome instance.
type BrowserConfig struct {
	Headless          bool              `mapstructure:"headless" yaml:"headless"`
	ExecPath          string            `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir       string            `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Args              []string          `mapstructure:"args" yaml:"args"`
	WindowWidth       int               `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int               `mapstructure:"window_height" yaml:"window_height"`
	NavigationTimeout time.Duration     `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	Headers           map[string]string `mapstructure:"headers" yaml:"headers"`
	Debug             bool              `mapstructure:"debug" yaml:"debug"`
}

// WaitConfig bounds every poll the runner performs.
type WaitConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	SignOutTimeout time.Duration `mapstructure:"sign_out_timeout" yaml:"sign_out_timeout"`
}

// UploadConfig holds the local acceptance rules for upload candidates.
type UploadConfig struct {
	AllowedExtension string `mapstructure:"allowed_extension" yaml:"allowed_extension"`
	MaxSizeMB        int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
}

// MaxBytes is the size limit in bytes (MiB based).
func (u UploadConfig) MaxBytes() int64 { return int64(u.MaxSizeMB) * 1024 * 1024 }

// FixturesConfig locates the upload fixture files.
type FixturesConfig struct {
	Dir          string `mapstructure:"dir" yaml:"dir"`
	ValidPDF     string `mapstructure:"valid_pdf" yaml:"valid_pdf"`
	NotPDF       string `mapstructure:"not_pdf" yaml:"not_pdf"`
	OversizedPDF string `mapstructure:"oversized_pdf" yaml:"oversized_pdf"`
}

// ArtifactsConfig controls failure evidence.
type ArtifactsConfig struct {
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// ReportConfig selects the report writer.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// DatabaseConfig is optional; persistence is off while URL is empty.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ReportFormats lists the formats the reporting package can write.
var ReportFormats = []string{"text", "json", "junit", "xlsx"}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "trackerprobe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Target --
	v.SetDefault("target.base_url", "http://localhost:5173/")
	v.SetDefault("target.selectors.username_student", `input[placeholder="student1"]`)
	v.SetDefault("target.selectors.username_teacher", `input[placeholder="teacher1"]`)
	v.SetDefault("target.selectors.password", `input[placeholder="Use 'password' for demo"]`)
	v.SetDefault("target.selectors.submit", `button[type="submit"]`)
	v.SetDefault("target.selectors.role_switch_teacher", `//button[contains(text(),'Teacher')]`)
	v.SetDefault("target.selectors.role_switch_student", `//button[contains(text(),'Student')]`)
	v.SetDefault("target.selectors.sign_out", `//button[contains(text(),'Sign out')]`)
	v.SetDefault("target.selectors.assignment_link", `a[href^='/assignment/']`)
	v.SetDefault("target.selectors.file_input", `input[type='file']`)
	v.SetDefault("target.selectors.submit_assignment", `//button[@type='submit' and contains(text(),'Submit Assignment')]`)
	v.SetDefault("target.selectors.login_error", `div.bg-red-50`)
	v.SetDefault("target.selectors.submission_confirmed", `//h4[contains(., 'Submission Details')]`)
	v.SetDefault("target.selectors.header_title", `//span[contains(text(),'Assignment Tracker')]`)
	v.SetDefault("target.selectors.login_title", `//h2[contains(text(),'Assignment Tracker')]`)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.debug", false)

	// -- Wait --
	v.SetDefault("wait.timeout", "15s")
	v.SetDefault("wait.poll_interval", "250ms")
	v.SetDefault("wait.sign_out_timeout", "5s")

	// -- Upload --
	v.SetDefault("upload.allowed_extension", ".pdf")
	v.SetDefault("upload.max_size_mb", 50)

	// -- Fixtures --
	v.SetDefault("fixtures.dir", "testdata/fixtures")
	v.SetDefault("fixtures.valid_pdf", "sample_assignment.pdf")
	v.SetDefault("fixtures.not_pdf", "not_a_pdf.txt")
	v.SetDefault("fixtures.oversized_pdf", "large_file.pdf")

	// -- Artifacts --
	v.SetDefault("artifacts.screenshot_dir", "")

	// -- Report --
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "")

	// -- Database --
	v.SetDefault("database.url", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The connection string usually carries a password, keep it out of files.
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.TargetCfg.Validate(); err != nil {
		return err
	}
	if err := c.WaitCfg.Validate(); err != nil {
		return err
	}
	if c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.UploadCfg.MaxSizeMB <= 0 {
		return fmt.Errorf("upload.max_size_mb must be a positive integer")
	}
	if c.UploadCfg.AllowedExtension == "" {
		return fmt.Errorf("upload.allowed_extension is required")
	}
	if !isKnownFormat(c.ReportCfg.Format) {
		return fmt.Errorf("report.format %q is not one of %s", c.ReportCfg.Format, strings.Join(ReportFormats, ", "))
	}
	return nil
}

// Validate checks the target settings.
func (t *TargetConfig) Validate() error {
	u, err := url.Parse(t.BaseURL)
	if err != nil {
		return fmt.Errorf("target.base_url is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("target.base_url must be an absolute http(s) URL, got %q", t.BaseURL)
	}
	if missing := t.Selectors.missing(); len(missing) > 0 {
		return fmt.Errorf("target.selectors missing values for: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks the wait bounds.
func (w *WaitConfig) Validate() error {
	if w.Timeout <= 0 {
		return fmt.Errorf("wait.timeout must be a positive duration")
	}
	if w.PollInterval <= 0 {
		return fmt.Errorf("wait.poll_interval must be a positive duration")
	}
	if w.PollInterval >= w.Timeout {
		return fmt.Errorf("wait.poll_interval must be shorter than wait.timeout")
	}
	if w.SignOutTimeout <= 0 {
		return fmt.Errorf("wait.sign_out_timeout must be a positive duration")
	}
	return nil
}

func isKnownFormat(f string) bool { return slices.Contains(ReportFormats, f) }
