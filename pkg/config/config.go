package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/osbench/pkg/types"
)

// Defaults match the original tool: a missing key never fails the load, it
// falls back to the value the tool always assumed.
func defaults() *types.Config {
	return &types.Config{
		Protocol:          "https",
		KeepAlive:         true,
		ConnectTimeoutSec: 30,
		RequestTimeoutSec: 0,
		ThreadsPerUser:    1,
		RequestsPerThread: 1,
		PartSize:          5 * 1024 * 1024,
		ObjectSizeMin:     1024,
		ObjectSizeMax:     1024,
		LogLevel:          "INFO",
		EnableCheckpoint:  true,
		UsersFile:         "users.dat",
		TokenFile:         "token.dat",
	}
}

// Load parses and validates the run configuration. Files ending in .yaml or
// .yml are parsed as a YAML document; anything else as the key=value format
// (lines of `Key = Value`, `#` comments, bracketed section headers ignored,
// keys and values trimmed). Credentials are loaded from the users or token
// file named by the configuration, and the derived fields (Threads,
// UseMixMode) are computed.
func Load(path string) (*types.Config, error) {
	cfg := defaults()

	var pairs map[string]string
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		pairs, err = readYAML(path)
	} else {
		pairs, err = readKeyValue(path)
	}
	if err != nil {
		return nil, err
	}

	// Range interpretation depends on RangeSuffixAnchorsEnd, so ranges are
	// parsed only after every other key has been applied.
	rangeRaw, hasRange := pairs["Range"]
	delete(pairs, "Range")
	for key, val := range pairs {
		if err := apply(cfg, key, val); err != nil {
			return nil, fmt.Errorf("config key %s: %w", key, err)
		}
	}
	if hasRange {
		if err := parseRanges(cfg, rangeRaw); err != nil {
			return nil, fmt.Errorf("config key Range: %w", err)
		}
	}

	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readKeyValue(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	pairs := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		pairs[key] = val
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return pairs, nil
}

func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse yaml config: %w", err)
	}
	pairs := make(map[string]string, len(raw))
	for k, v := range raw {
		pairs[k] = strings.TrimSpace(fmt.Sprint(v))
	}
	return pairs, nil
}

func parseBool(val string) bool {
	return strings.EqualFold(val, "true") || val == "1"
}

func apply(cfg *types.Config, key, val string) error {
	var err error
	switch key {
	case "Endpoint":
		cfg.Endpoint = val
	case "Protocol":
		cfg.Protocol = strings.ToLower(val)
	case "KeepAlive":
		cfg.KeepAlive = parseBool(val)
	case "ConnectTimeoutSec":
		cfg.ConnectTimeoutSec, err = strconv.Atoi(val)
	case "RequestTimeoutSec":
		cfg.RequestTimeoutSec, err = strconv.Atoi(val)
	case "IsTemporaryToken":
		cfg.IsTemporaryToken = parseBool(val)
	case "Users":
		cfg.Users, err = strconv.Atoi(val)
	case "ThreadsPerUser":
		cfg.ThreadsPerUser, err = strconv.Atoi(val)
	case "BucketNamePrefix":
		cfg.BucketNamePrefix = val
	case "BucketNameFixed":
		cfg.BucketNameFixed = val
	case "RequestsPerThread":
		cfg.RequestsPerThread, err = strconv.ParseInt(val, 10, 64)
	case "TestCase":
		cfg.TestCase, err = strconv.Atoi(val)
	case "RunSeconds":
		cfg.RunSeconds, err = strconv.Atoi(val)
	case "MixOperation":
		cfg.MixOps = parseMixOps(val)
	case "MixLoopCount":
		cfg.MixLoopCount, err = strconv.ParseInt(val, 10, 64)
	case "ObjectSize":
		err = parseObjectSize(cfg, val)
	case "PartSize":
		cfg.PartSize, err = strconv.ParseInt(val, 10, 64)
	case "KeyPrefix":
		cfg.KeyPrefix = val
	case "ObjNamePatternHash":
		cfg.ObjNamePatternHash = parseBool(val)
	case "Range":
		err = parseRanges(cfg, val)
	case "RangeSuffixAnchorsEnd":
		cfg.RangeSuffixAnchorsEnd = parseBool(val)
	case "EnableDataValidation":
		cfg.EnableDataValidation = parseBool(val)
	case "EnableDetailLog":
		cfg.EnableDetailLog = parseBool(val)
	case "LogLevel":
		cfg.LogLevel = strings.ToUpper(val)
	case "EnableCheckpoint":
		cfg.EnableCheckpoint = parseBool(val)
	case "UploadFilePath":
		cfg.UploadFilePath = val
	case "UsersFile":
		cfg.UsersFile = val
	case "TokenFile":
		cfg.TokenFile = val
	case "MetricsListen":
		cfg.MetricsListen = val
	case "GmModeSwitch":
		cfg.GmModeSwitch = parseBool(val)
	case "MutualSslSwitch":
		cfg.MutualSslSwitch = parseBool(val)
	case "SslMinVersion":
		cfg.SslMinVersion = val
	case "SslMaxVersion":
		cfg.SslMaxVersion = val
	case "ServerCertPath":
		cfg.ServerCertPath = val
	case "ClientSignCertPath":
		cfg.ClientSignCertPath = val
	case "ClientSignKeyPath":
		cfg.ClientSignKeyPath = val
	case "ClientSignKeyPassword":
		cfg.ClientSignKeyPassword = val
	case "ClientEncCertPath":
		cfg.ClientEncCertPath = val
	case "ClientEncKeyPath":
		cfg.ClientEncKeyPath = val
	default:
		// Unknown keys are ignored so configs can be shared across tool
		// versions.
	}
	return err
}

func parseMixOps(val string) []int {
	var ops []int
	for _, tok := range strings.Split(val, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		op, err := strconv.Atoi(tok)
		if err != nil || op <= 0 || op == types.CaseMix {
			continue
		}
		ops = append(ops, op)
	}
	return ops
}

func parseObjectSize(cfg *types.Config, val string) error {
	if min, max, ok := strings.Cut(val, "~"); ok {
		lo, err := strconv.ParseInt(strings.TrimSpace(min), 10, 64)
		if err != nil {
			return err
		}
		hi, err := strconv.ParseInt(strings.TrimSpace(max), 10, 64)
		if err != nil {
			return err
		}
		if lo > hi {
			return fmt.Errorf("invalid ObjectSize range: min (%d) > max (%d)", lo, hi)
		}
		cfg.ObjectSizeMin, cfg.ObjectSizeMax = lo, hi
		cfg.DynamicSize = true
		return nil
	}
	size, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return err
	}
	cfg.ObjectSizeMin, cfg.ObjectSizeMax = size, size
	cfg.DynamicSize = false
	return nil
}

func parseRanges(cfg *types.Config, val string) error {
	cfg.Ranges = nil
	for _, tok := range strings.Split(val, ";") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		spec, err := ParseRange(tok, cfg.RangeSuffixAnchorsEnd)
		if err != nil {
			return err
		}
		cfg.Ranges = append(cfg.Ranges, spec)
	}
	return nil
}

// ParseRange parses one byte-range token of the form `a-b`, `a-` or `-n`.
//
// Suffix ranges (`-n`) read the first n+1 bytes anchored at offset 0 by
// default. With suffixAnchorsEnd the token is interpreted as the trailing
// n bytes of the object; the anchor then depends on the object size, which
// is unknown until response time, so validation is skipped for those reads.
func ParseRange(tok string, suffixAnchorsEnd bool) (types.RangeSpec, error) {
	spec := types.RangeSpec{Raw: tok}
	dash := strings.IndexByte(tok, '-')
	if dash < 0 {
		return spec, fmt.Errorf("invalid range %q: missing '-'", tok)
	}
	left, right := tok[:dash], tok[dash+1:]

	if left == "" {
		// -n
		n, err := strconv.ParseInt(right, 10, 64)
		if err != nil || n < 0 {
			return spec, fmt.Errorf("invalid range %q", tok)
		}
		if suffixAnchorsEnd {
			spec.Start = -n
			spec.Count = n
			spec.SkipValidation = true
			return spec, nil
		}
		spec.Start = 0
		spec.Count = n + 1
		spec.Anchor = 0
		return spec, nil
	}

	start, err := strconv.ParseInt(left, 10, 64)
	if err != nil || start < 0 {
		return spec, fmt.Errorf("invalid range %q", tok)
	}
	spec.Start = start
	spec.Anchor = start
	if right == "" {
		// a-: to end of object
		spec.Count = 0
		return spec, nil
	}
	end, err := strconv.ParseInt(right, 10, 64)
	if err != nil || end < start {
		return spec, fmt.Errorf("invalid range %q", tok)
	}
	spec.Count = end - start + 1
	return spec, nil
}

var validSslVersions = map[string]bool{"": true, "1.0": true, "1.1": true, "1.2": true, "1.3": true}

func finalize(cfg *types.Config) error {
	if cfg.PartSize <= 0 {
		cfg.PartSize = 5 * 1024 * 1024
	}
	if cfg.ThreadsPerUser <= 0 {
		cfg.ThreadsPerUser = 1
	}

	cfg.UseMixMode = cfg.TestCase == types.CaseMix && len(cfg.MixOps) > 0

	if cfg.GmModeSwitch {
		if !validSslVersions[cfg.SslMinVersion] || !validSslVersions[cfg.SslMaxVersion] {
			return fmt.Errorf("invalid SslMinVersion/SslMaxVersion %q/%q", cfg.SslMinVersion, cfg.SslMaxVersion)
		}
		if cfg.SslMinVersion != "" && cfg.SslMaxVersion != "" && cfg.SslMinVersion > cfg.SslMaxVersion {
			return fmt.Errorf("SslMinVersion %s > SslMaxVersion %s", cfg.SslMinVersion, cfg.SslMaxVersion)
		}
	}
	if cfg.MutualSslSwitch && (cfg.ClientSignCertPath == "" || cfg.ClientSignKeyPath == "") {
		return fmt.Errorf("ClientSignCertPath/ClientSignKeyPath required when MutualSslSwitch is enabled")
	}
	if cfg.NeedsUploadFile() && cfg.UploadFilePath == "" {
		return fmt.Errorf("UploadFilePath cannot be empty for the resumable test case")
	}

	usersPath := cfg.UsersFile
	if cfg.IsTemporaryToken {
		usersPath = cfg.TokenFile
	}
	users, err := LoadUsers(usersPath, cfg.Users, cfg.IsTemporaryToken)
	if err != nil {
		return err
	}
	cfg.UserList = users
	cfg.Threads = len(users) * cfg.ThreadsPerUser

	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyTestCaseOverride applies the CLI positional test-case override,
// switching mixed mode on or off to match.
func ApplyTestCaseOverride(cfg *types.Config, testCase int) {
	cfg.TestCase = testCase
	cfg.UseMixMode = testCase == types.CaseMix && len(cfg.MixOps) > 0
}
