package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
lines:
  - name: Blue
    yard: 1
    blocks:
      - {section: A, number: 1, length: 50}
`

func TestParse_Example(t *testing.T) {
	cfg, err := Parse([]byte(Example))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Controller.TickInterval != time.Second {
		t.Errorf("TickInterval = %v, want 1s", cfg.Controller.TickInterval)
	}
	want := time.Date(2026, 1, 5, 5, 59, 0, 0, time.UTC)
	if !cfg.Controller.StartTime.Equal(want) {
		t.Errorf("StartTime = %v, want %v", cfg.Controller.StartTime, want)
	}
	if !cfg.Controller.AutoStart {
		t.Error("AutoStart = false, want true")
	}
	if cfg.Controller.SnapshotEvery != 30 {
		t.Errorf("SnapshotEvery = %d, want 30", cfg.Controller.SnapshotEvery)
	}
	if len(cfg.Collaborators) != 2 {
		t.Fatalf("len(Collaborators) = %d, want 2", len(cfg.Collaborators))
	}
	if cfg.Collaborators[0].MaxStaleness != 5*time.Second {
		t.Errorf("Collaborators[0].MaxStaleness = %v, want 5s", cfg.Collaborators[0].MaxStaleness)
	}
	if len(cfg.Lines) != 2 {
		t.Fatalf("len(Lines) = %d, want 2", len(cfg.Lines))
	}

	green := cfg.Lines[0]
	if green.Name != "Green" {
		t.Errorf("Lines[0].Name = %q, want Green", green.Name)
	}
	if len(green.Blocks) != 9 {
		t.Errorf("len(Green.Blocks) = %d, want 9", len(green.Blocks))
	}
	if green.Blocks[2].SpeedLimit != 12 {
		t.Errorf("Green block 3 SpeedLimit = %v, want 12", green.Blocks[2].SpeedLimit)
	}
	if green.Blocks[0].SpeedLimit != 19.44 {
		t.Errorf("Green block 1 SpeedLimit = %v, want line default 19.44", green.Blocks[0].SpeedLimit)
	}
	if len(green.Switches) != 1 || green.Switches[0].Reverse != 12 {
		t.Errorf("Green switches = %+v", green.Switches)
	}

	if len(cfg.Schedule) != 2 || cfg.Schedule[0].ID != 12 {
		t.Errorf("Schedule = %+v", cfg.Schedule)
	}
	if len(cfg.Services) != 1 || cfg.Services[0].RunTime != 12*time.Minute {
		t.Errorf("Services = %+v", cfg.Services)
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctl := cfg.Controller
	if ctl.TickInterval != time.Second || ctl.Step != time.Second {
		t.Errorf("TickInterval/Step = %v/%v, want 1s/1s", ctl.TickInterval, ctl.Step)
	}
	if ctl.Speed != 1 {
		t.Errorf("Speed = %v, want 1", ctl.Speed)
	}
	if ctl.LookaheadBlocks != 8 {
		t.Errorf("LookaheadBlocks = %d, want 8", ctl.LookaheadBlocks)
	}
	if ctl.ServiceBrake != 1.2 {
		t.Errorf("ServiceBrake = %v, want 1.2", ctl.ServiceBrake)
	}
	if ctl.QueueCapacity != 1024 {
		t.Errorf("QueueCapacity = %d, want 1024", ctl.QueueCapacity)
	}
	if ctl.StartTime.IsZero() {
		t.Error("StartTime should default to a fixed date")
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "ctc.db" {
		t.Errorf("Database = %+v, want sqlite ctc.db", cfg.Database)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}
	if got := cfg.Lines[0].Blocks[0].SpeedLimit; got != ctl.MaxTrainSpeed {
		t.Errorf("block SpeedLimit = %v, want max train speed %v", got, ctl.MaxTrainSpeed)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: mysql\n" + minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db := cfg.Database
	if db.Host != "127.0.0.1" || db.Port != 3306 || db.User != "root" || db.Name != "ctc" {
		t.Errorf("Database = %+v, want mysql defaults", db)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no lines",
			yaml: "controller:\n  speed: 2\n",
			want: "at least one line is required",
		},
		{
			name: "missing yard",
			yaml: "lines:\n  - name: Blue\n    blocks:\n      - {section: A, number: 1, length: 10}\n",
			want: "lines[0].yard is required",
		},
		{
			name: "zero length block",
			yaml: "lines:\n  - name: Blue\n    yard: 1\n    blocks:\n      - {section: A, number: 1}\n",
			want: "lines[0].blocks[0].length must be positive",
		},
		{
			name: "bad driver",
			yaml: "database:\n  driver: postgres\n" + minimalYAML,
			want: `database.driver "postgres"`,
		},
		{
			name: "bad collaborator kind",
			yaml: "collaborators:\n  - name: x\n    kind: radio\n" + minimalYAML,
			want: `collaborators[0].kind "radio"`,
		},
		{
			name: "schedule on unknown line",
			yaml: minimalYAML + "schedule:\n  - id: 1\n    line: Purple\n    destination: X\n",
			want: `schedule[0].line "Purple" is not configured`,
		},
		{
			name: "service without cron",
			yaml: minimalYAML + "services:\n  - line: Blue\n    destination: X\n    first_id: 5\n",
			want: "services[0].cron is required",
		},
		{
			name: "unknown alert platform",
			yaml: "alerts:\n  platform: teams\n  channel: ops\n  token: x\n" + minimalYAML,
			want: `alerts.platform "teams" must be slack or discord`,
		},
		{
			name: "alerts without channel",
			yaml: "alerts:\n  platform: slack\n  token: x\n" + minimalYAML,
			want: "alerts.channel is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_AlertsDisabledByDefault(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Alerts.Enabled() {
		t.Error("alerts should be disabled without a platform")
	}
	if cfg.Alerts.Cooldown != 0 {
		t.Errorf("Cooldown = %v, want 0 when disabled", cfg.Alerts.Cooldown)
	}
}

func TestParse_AlertTokenFromEnv(t *testing.T) {
	t.Setenv(AlertTokenEnv, "xoxb-from-env")
	cfg, err := Parse([]byte("alerts:\n  platform: slack\n  channel: C123\n" + minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Alerts.Token != "xoxb-from-env" {
		t.Errorf("Token = %q, want value from %s", cfg.Alerts.Token, AlertTokenEnv)
	}
	if cfg.Alerts.Cooldown != time.Minute {
		t.Errorf("Cooldown = %v, want 1m", cfg.Alerts.Cooldown)
	}
}

func TestParse_AlertTokenRequired(t *testing.T) {
	t.Setenv(AlertTokenEnv, "")
	_, err := Parse([]byte("alerts:\n  platform: discord\n  channel: 123\n" + minimalYAML))
	if err == nil || !strings.Contains(err.Error(), "alerts.token is required") {
		t.Fatalf("err = %v, want token error", err)
	}
}

func TestParse_AlertTokenInFileWins(t *testing.T) {
	t.Setenv(AlertTokenEnv, "from-env")
	cfg, err := Parse([]byte("alerts:\n  platform: discord\n  channel: \"123\"\n  token: from-file\n  pulse: 30m\n" + minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Alerts.Token != "from-file" {
		t.Errorf("Token = %q, want from-file", cfg.Alerts.Token)
	}
	if cfg.Alerts.Pulse != 30*time.Minute {
		t.Errorf("Pulse = %v, want 30m", cfg.Alerts.Pulse)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("lines: [unterminated"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want config: parse prefix", err.Error())
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctc.yaml")
	if err := os.WriteFile(path, []byte(Example), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Lines[1].Name != "Red" {
		t.Errorf("Lines[1].Name = %q, want Red", cfg.Lines[1].Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q", err.Error())
	}
}
