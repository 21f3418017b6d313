package config

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const validYAML = `telegram:
  token: "123:abc"
  poll_interval_seconds: 5

auth:
  admin_code: admin-code
  personnel_code: staff-code

timezone: Asia/Tehran

reminder:
  hour: 9
  minute: 30
`

func TestFromYAMLValid(t *testing.T) {
	cfg, err := FromYAML([]byte(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Fatalf("poll interval = %v", cfg.PollInterval())
	}
	if cfg.Reminder.Hour != 9 || cfg.Reminder.Minute != 30 {
		t.Fatalf("reminder = %d:%d", cfg.Reminder.Hour, cfg.Reminder.Minute)
	}
}

func TestFromYAMLDefaultsReminderTo8(t *testing.T) {
	cfg, err := FromYAML([]byte(`auth:
  admin_code: a
  personnel_code: b
timezone: UTC
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Reminder.Hour != 8 || cfg.Reminder.Minute != 0 {
		t.Fatalf("reminder default = %d:%d, want 8:0", cfg.Reminder.Hour, cfg.Reminder.Minute)
	}
	if cfg.PollInterval() != 2*time.Second {
		t.Fatalf("poll interval default = %v", cfg.PollInterval())
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing admin code",
			yaml: "auth:\n  personnel_code: b\ntimezone: UTC\n",
			want: "admin_code",
		},
		{
			name: "missing personnel code",
			yaml: "auth:\n  admin_code: a\ntimezone: UTC\n",
			want: "personnel_code",
		},
		{
			name: "identical codes",
			yaml: "auth:\n  admin_code: same\n  personnel_code: same\ntimezone: UTC\n",
			want: "must differ",
		},
		{
			name: "missing timezone",
			yaml: "auth:\n  admin_code: a\n  personnel_code: b\n",
			want: "timezone",
		},
		{
			name: "bogus timezone",
			yaml: "auth:\n  admin_code: a\n  personnel_code: b\ntimezone: Nowhere/Atlantis\n",
			want: "timezone",
		},
		{
			name: "reminder hour out of range",
			yaml: "auth:\n  admin_code: a\n  personnel_code: b\ntimezone: UTC\nreminder:\n  hour: 24\n",
			want: "hour",
		},
		{
			name: "reminder minute out of range",
			yaml: "auth:\n  admin_code: a\n  personnel_code: b\ntimezone: UTC\nreminder:\n  hour: 8\n  minute: 61\n",
			want: "minute",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestGenerateDefaultParses(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(GenerateDefault()), &cfg); err != nil {
		t.Fatalf("default template must parse: %v", err)
	}
	if cfg.Timezone == "" {
		t.Fatal("default template must carry a timezone")
	}
	if cfg.Server.BasePath != "/v0" {
		t.Fatalf("base path = %q", cfg.Server.BasePath)
	}
}

func TestAttachmentsDir(t *testing.T) {
	var cfg Config
	if got := cfg.AttachmentsDir("/ws"); got != "/ws/photos" {
		t.Fatalf("default dir = %q", got)
	}
	cfg.Attachments.Dir = "/abs/photos"
	if got := cfg.AttachmentsDir("/ws"); got != "/abs/photos" {
		t.Fatalf("absolute dir = %q", got)
	}
}
