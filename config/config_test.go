package config_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/meidoworks/orgsync/config"
	"github.com/meidoworks/orgsync/shared/testlib"

	"github.com/spf13/afero"
)

const sample = `
[shared]
log_level = "debug"

[barrier]
expected = ["OrgBMSP"]

[coordinator]
channel = "supplychain"

[[organizations]]
msp_id = "OrgAMSP"
agent = "inproc"
primary = true

[[organizations]]
msp_id = "OrgDMSP"
agent = "10.0.0.4:9402"

[[nodes]]
name = "peer0.orga"
address = "peer0.orga:7051"
msp_id = "OrgAMSP"
admin_msps = ["OrgAMSP"]

[[nodes]]
name = "peer0.orgb"
msp_id = "OrgBMSP"
admin_msps = ["OrgBMSP"]
`

func TestLoadMergesDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	testlib.AssertError(t, afero.WriteFile(fs, "orgsync.toml", []byte(sample), 0644))

	cfg, err := config.Load(fs, "orgsync.toml")
	testlib.AssertError(t, err)
	testlib.AssertError(t, cfg.ValidateCoordinator())

	if cfg.Shared.LogLevel != "debug" {
		t.Fatal("configured value overwritten:", cfg.Shared.LogLevel)
	}
	if cfg.Barrier.Listen != ":45207" || cfg.Barrier.Delimiter != "-" || cfg.Barrier.MaxParticipants != 256 {
		t.Fatal("barrier defaults not merged:", cfg.Barrier)
	}
	if cfg.Barrier.Channel != "supplychain" {
		t.Fatal("barrier channel should follow the coordinator channel:", cfg.Barrier.Channel)
	}
	if cfg.Barrier.WaitTimeout() != time.Minute {
		t.Fatal("unexpected wait timeout:", cfg.Barrier.WaitTimeout())
	}
	if p := cfg.PrimaryOrganization(); p.MSPID != "OrgAMSP" {
		t.Fatal("unexpected primary:", p)
	}
	if len(cfg.Nodes) != 2 || cfg.Nodes[1].AdminMSPs[0] != "OrgBMSP" {
		t.Fatal("unexpected nodes:", cfg.Nodes)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(afero.NewMemMapFs(), "missing.toml"); err == nil {
		t.Fatal("expect error")
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	testlib.AssertError(t, config.WriteDefault(buf))
	cfg, err := config.Parse(buf.Bytes())
	testlib.AssertError(t, err)
	testlib.AssertError(t, cfg.ValidateCoordinator())
	testlib.AssertError(t, cfg.ValidateAgent())
	testlib.AssertError(t, cfg.ValidateParticipant())

	fs := afero.NewMemMapFs()
	testlib.AssertError(t, config.WriteDefaultFile(fs, "orgsync.toml.example"))
	if ok, _ := afero.Exists(fs, "orgsync.toml.example"); !ok {
		t.Fatal("sample not written")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{"bad log level", "[shared]\nlog_level = \"loud\"\n", config.ErrInvalidLogLevel},
		{"no organization", "", config.ErrNoOrganizations},
		{"two primaries", "[[organizations]]\nmsp_id = \"A\"\nagent = \"inproc\"\nprimary = true\n[[organizations]]\nmsp_id = \"B\"\nagent = \"inproc\"\nprimary = true\n", config.ErrMultiplePrimaries},
		{"duplicated organization", "[[organizations]]\nmsp_id = \"A\"\nagent = \"inproc\"\n[[organizations]]\nmsp_id = \"A\"\nagent = \"x:1\"\n", config.ErrDuplicatedOrganization},
		{"node without owner", "[[organizations]]\nmsp_id = \"A\"\nagent = \"inproc\"\n[[nodes]]\nname = \"p\"\n", config.ErrNodeWithoutOwner},
	}
	for _, c := range cases {
		cfg, err := config.Parse([]byte(c.data))
		testlib.AssertError(t, err)
		if err := cfg.ValidateCoordinator(); !errors.Is(err, c.want) {
			t.Fatal(c.name, ": expect", c.want, "got", err)
		}
	}

	cfg, err := config.Parse(nil)
	testlib.AssertError(t, err)
	if err := cfg.ValidateAgent(); !errors.Is(err, config.ErrNoAgentMSPID) {
		t.Fatal("expect ErrNoAgentMSPID, got", err)
	}
	if err := cfg.ValidateParticipant(); !errors.Is(err, config.ErrIncompleteParticipant) {
		t.Fatal("expect ErrIncompleteParticipant, got", err)
	}
}
