package config

import (
	"fmt"
	"io"
	"time"

	"github.com/meidoworks/orgsync/api"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var _defaultConfig = &OrgSyncConfig{
	Shared: SharedConfig{
		LogLevel: "info",
	},

	Barrier: BarrierConfig{
		Listen:          fmt.Sprintf(":%d", api.DefaultBarrierPort),
		Delimiter:       api.DefaultBarrierDelimiter,
		Channel:         "mychannel",
		MaxParticipants: 256,
		WaitTimeoutMs:   60000,
	},

	Coordinator: CoordinatorConfig{
		Listen:  ":9401",
		Channel: "mychannel",
	},

	Organizations: []OrganizationConfig{
		{MSPID: "Org1MSP", Agent: api.DefaultConfigLocalSwitchAgentAddress, Primary: true},
	},

	Nodes: []api.Node{
		{Name: "peer0.org1.example.com", Address: "peer0.org1.example.com:7051", MSPID: "Org1MSP", AdminMSPs: []string{"Org1MSP"}},
		{Name: "peer0.org2.example.com", Address: "peer0.org2.example.com:7051", MSPID: "Org2MSP", AdminMSPs: []string{"Org2MSP"}},
	},

	Agent: AgentConfig{
		MSPID:         "Org1MSP",
		Listen:        ":9402",
		CommitDelayMs: 200,
	},

	Participant: ParticipantConfig{
		Server: fmt.Sprintf("127.0.0.1:%d", api.DefaultBarrierPort),
		MSPIDs: []string{"Org2MSP"},
	},
}

func WriteDefault(w io.Writer) error {
	data, err := toml.Marshal(_defaultConfig)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteDefaultFile writes the sample configuration to path.
func WriteDefaultFile(fs afero.Fs, path string) error {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteDefault(f)
}

type OrgSyncConfig struct {
	Shared SharedConfig `toml:"shared"`

	Barrier     BarrierConfig     `toml:"barrier"`
	Coordinator CoordinatorConfig `toml:"coordinator"`

	Organizations []OrganizationConfig `toml:"organizations"`
	Nodes         []api.Node           `toml:"nodes"`

	Agent       AgentConfig       `toml:"agent"`
	Participant ParticipantConfig `toml:"participant"`
}

type SharedConfig struct {
	NodeId   int16  `toml:"node_id"`
	LogLevel string `toml:"log_level"`
}

type BarrierConfig struct {
	Disable   bool   `toml:"disable"`
	Listen    string `toml:"listen"`
	Delimiter string `toml:"delimiter"`
	// Expected overrides the organizations derived from the nodes of Channel.
	Expected        []string `toml:"expected"`
	Channel         string   `toml:"channel"`
	MaxParticipants int      `toml:"max_participants"`
	WaitTimeoutMs   int      `toml:"wait_timeout_ms"`
}

type CoordinatorConfig struct {
	Listen  string `toml:"listen"`
	Channel string `toml:"channel"`
}

type OrganizationConfig struct {
	MSPID string `toml:"msp_id"`
	// Agent is the address of the organization's agent, or inproc to run it
	// inside the coordinator.
	Agent   string `toml:"agent"`
	Primary bool   `toml:"primary"`
}

type AgentConfig struct {
	MSPID         string `toml:"msp_id"`
	Listen        string `toml:"listen"`
	CommitDelayMs int    `toml:"commit_delay_ms"`
}

type ParticipantConfig struct {
	Server    string   `toml:"server"`
	MSPIDs    []string `toml:"msp_ids"`
	Delimiter string   `toml:"delimiter"`
}

func Load(fs afero.Fs, path string) (*OrgSyncConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*OrgSyncConfig, error) {
	cfg := new(OrgSyncConfig)
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg.MergeDefault(), nil
}

// MergeDefault fills zero scalar fields from the defaults. Lists are left as
// configured.
func (n *OrgSyncConfig) MergeDefault() *OrgSyncConfig {
	d := _defaultConfig
	setString(&n.Shared.LogLevel, d.Shared.LogLevel)

	setString(&n.Barrier.Listen, d.Barrier.Listen)
	setString(&n.Barrier.Delimiter, d.Barrier.Delimiter)
	setInt(&n.Barrier.MaxParticipants, d.Barrier.MaxParticipants)
	setInt(&n.Barrier.WaitTimeoutMs, d.Barrier.WaitTimeoutMs)

	setString(&n.Coordinator.Listen, d.Coordinator.Listen)
	setString(&n.Coordinator.Channel, d.Coordinator.Channel)
	setString(&n.Barrier.Channel, n.Coordinator.Channel)

	setString(&n.Agent.Listen, d.Agent.Listen)
	setInt(&n.Agent.CommitDelayMs, d.Agent.CommitDelayMs)

	setString(&n.Participant.Delimiter, api.DefaultBarrierDelimiter)
	return n
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

// Validate checks the sections shared by every app.
func (n *OrgSyncConfig) Validate() error {
	if _, err := logrus.ParseLevel(n.Shared.LogLevel); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, err)
	}
	names := map[string]struct{}{}
	for _, node := range n.Nodes {
		if node.Name == "" {
			return ErrNodeWithoutName
		}
		if _, ok := names[node.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicatedNode, node.Name)
		}
		names[node.Name] = struct{}{}
		if node.MSPID == "" || len(node.AdminMSPs) == 0 {
			return fmt.Errorf("%w: %s", ErrNodeWithoutOwner, node.Name)
		}
	}
	return nil
}

func (n *OrgSyncConfig) ValidateCoordinator() error {
	if err := n.Validate(); err != nil {
		return err
	}
	if len(n.Organizations) == 0 {
		return ErrNoOrganizations
	}
	msps := map[string]struct{}{}
	primaries := 0
	for _, org := range n.Organizations {
		if org.MSPID == "" || org.Agent == "" {
			return ErrIncompleteOrganization
		}
		if _, ok := msps[org.MSPID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicatedOrganization, org.MSPID)
		}
		msps[org.MSPID] = struct{}{}
		if org.Primary {
			primaries++
		}
	}
	if primaries > 1 {
		return ErrMultiplePrimaries
	}
	return nil
}

func (n *OrgSyncConfig) ValidateAgent() error {
	if err := n.Validate(); err != nil {
		return err
	}
	if n.Agent.MSPID == "" {
		return ErrNoAgentMSPID
	}
	return nil
}

func (n *OrgSyncConfig) ValidateParticipant() error {
	if err := n.Validate(); err != nil {
		return err
	}
	if n.Participant.Server == "" || len(n.Participant.MSPIDs) == 0 {
		return ErrIncompleteParticipant
	}
	return nil
}

// PrimaryOrganization returns the organization marked primary, or the first one.
func (n *OrgSyncConfig) PrimaryOrganization() OrganizationConfig {
	for _, org := range n.Organizations {
		if org.Primary {
			return org
		}
	}
	if len(n.Organizations) > 0 {
		return n.Organizations[0]
	}
	return OrganizationConfig{}
}

func (b BarrierConfig) WaitTimeout() time.Duration {
	return time.Duration(b.WaitTimeoutMs) * time.Millisecond
}

func (a AgentConfig) CommitDelay() time.Duration {
	return time.Duration(a.CommitDelayMs) * time.Millisecond
}
