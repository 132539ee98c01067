package bootstrap

import (
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "time"

    "github.com/ghodss/yaml"

    cns "github.com/amirimatin/clusterdash/pkg/consensus"
    tlsx "github.com/amirimatin/clusterdash/pkg/security/tlsconfig"
)

// Duration is a time.Duration read from config files as "5s" or as a number
// of nanoseconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(time.Duration(d).String()) }

func (d *Duration) UnmarshalJSON(b []byte) error {
    var v any
    if err := json.Unmarshal(b, &v); err != nil { return err }
    switch x := v.(type) {
    case float64:
        *d = Duration(time.Duration(x))
    case string:
        p, err := time.ParseDuration(x)
        if err != nil { return fmt.Errorf("bootstrap: duration %q: %w", x, err) }
        *d = Duration(p)
    default:
        return fmt.Errorf("bootstrap: invalid duration %s", b)
    }
    return nil
}

// Config defines the inputs to assemble a dashboard node. Zero fields take the
// values of Defaults when loaded with LoadConfig.
type Config struct {
    // Identity and addresses
    NodeID  string `json:"nodeId"`
    MemBind string `json:"memBind"` // gossip bind host:port
    MemAdv  string `json:"memAdv"`  // optional gossip advertise host:port

    // Dashboard API
    APIAddr  string `json:"apiAddr"`  // host:port the API listens on
    APIProto string `json:"apiProto"` // "http" (default) or "grpc"
    // APIHost is the host this node advertises in its own descriptor. It
    // defaults to the host of APIAddr, then MemAdv, then the hostname.
    APIHost string `json:"apiHost"`

    // Raft replication. Without it the node keeps a local registry.
    Raft          bool   `json:"raft"`
    RaftAddr      string `json:"raftAddr"`
    RaftAdvertise string `json:"raftAdvertise"`
    Peers         string `json:"peers"` // id=host:port,...
    DataDir       string `json:"dataDir"`
    Bootstrap     bool   `json:"bootstrap"`

    // Discovery. Every configured source contributes seeds.
    SeedsCSV    string   `json:"seeds"`
    DNSNamesCSV string   `json:"dnsNames"`
    DNSPort     int      `json:"dnsPort"`
    FilePath    string   `json:"filePath"`
    FileEnv     string   `json:"fileEnv"`
    DiscRefresh Duration `json:"discoveryRefresh"`

    ReconcileInterval Duration `json:"reconcileInterval"`

    TLS tlsx.Options `json:"tls"`

    // Version is advertised as rwVersion in this node's descriptor.
    Version string `json:"version"`

    // Logger (optional). If nil, log.Default() is used.
    Logger *log.Logger `json:"-"`
    // OnLeaderChange is called for every observed leader change.
    OnLeaderChange func(info cns.LeaderInfo) `json:"-"`
}

// Defaults returns the configuration used for fields a config file omits.
func Defaults() Config {
    return Config{
        MemBind:           ":7946",
        APIAddr:           ":5691",
        APIProto:          "http",
        RaftAddr:          ":9520",
        DNSPort:           7946,
        DiscRefresh:       Duration(5 * time.Second),
        ReconcileInterval: Duration(5 * time.Second),
        Version:           "dev",
    }
}

// LoadConfig reads a YAML (or JSON) file over Defaults.
func LoadConfig(path string) (Config, error) {
    cfg := Defaults()
    b, err := os.ReadFile(path)
    if err != nil { return cfg, fmt.Errorf("bootstrap: read config: %w", err) }
    if err := yaml.Unmarshal(b, &cfg); err != nil { return cfg, fmt.Errorf("bootstrap: parse %s: %w", path, err) }
    return cfg, nil
}

// Validate checks the fields Build depends on.
func (c Config) Validate() error {
    if c.NodeID == "" { return errors.New("bootstrap: empty NodeID") }
    if c.MemBind == "" { return errors.New("bootstrap: empty MemBind") }
    switch c.APIProto {
    case "", "http", "grpc":
    default:
        return fmt.Errorf("bootstrap: unknown API protocol %q", c.APIProto)
    }
    if _, err := cns.ParsePeers(c.Peers); err != nil { return err }
    if c.Peers != "" && !c.Raft { return errors.New("bootstrap: peers require raft") }
    return c.TLS.Validate(true)
}
