package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the sheep directory layout under the user's
// home directory. Agent memory stores live side by side with the CLI
// configuration so that a single directory holds all persisted state.
type Paths struct {
	// AppName is the application name
	AppName string

	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		AppName: appName,
		HomeDir: home,
	}, nil
}

// BaseDir returns the base directory (~/.clawdbot)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns the app-specific directory (~/.clawdbot/<app>)
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns the config file path (~/.clawdbot/<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// AgentDir returns the memory store directory for an agent
// (~/.clawdbot/<app>/<agentID>).
func (p *Paths) AgentDir(agentID string) string {
	return filepath.Join(p.AppDir(), agentID)
}

// BackupDir returns the snapshot backup directory (~/.clawdbot/<app>/backups)
func (p *Paths) BackupDir() string {
	return filepath.Join(p.AppDir(), "backups")
}

// LogDir returns the log directory (~/.clawdbot/<app>/logs)
func (p *Paths) LogDir() string {
	return filepath.Join(p.AppDir(), "logs")
}

// EnsureAppDir creates the app directory if it doesn't exist
func (p *Paths) EnsureAppDir() error {
	return os.MkdirAll(p.AppDir(), 0755)
}

// EnsureAgentDir creates the agent store directory if it doesn't exist
func (p *Paths) EnsureAgentDir(agentID string) error {
	return os.MkdirAll(p.AgentDir(agentID), 0755)
}

// EnsureBackupDir creates the backup directory if it doesn't exist
func (p *Paths) EnsureBackupDir() error {
	return os.MkdirAll(p.BackupDir(), 0755)
}

// EnsureLogDir creates the log directory if it doesn't exist
func (p *Paths) EnsureLogDir() error {
	return os.MkdirAll(p.LogDir(), 0755)
}
