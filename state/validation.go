package state

import (
	"fmt"
	"net/netip"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func BindValidator(s string) error {
	_, err := netip.ParseAddrPort(s)
	return err
}

func ConfigValidator(cfg *LocalCfg) error {
	err := NameValidator(string(cfg.Id))
	if err != nil {
		return err
	}
	if cfg.LogPath != "" {
		if err := PathValidator(cfg.LogPath); err != nil {
			return fmt.Errorf("invalid log_path: %w", err)
		}
	}
	if err := BindValidator(cfg.DebugAddr); err != nil {
		return fmt.Errorf("invalid debug_addr: %w", err)
	}
	switch cfg.EntryPolicy {
	case EntryOptimistic, EntryExplicit:
	default:
		return fmt.Errorf("unknown entry_policy %q, expected %q or %q", cfg.EntryPolicy, EntryOptimistic, EntryExplicit)
	}
	switch cfg.PortMismatch {
	case MismatchReject, MismatchRefresh:
	default:
		return fmt.Errorf("unknown port_mismatch %q, expected %q or %q", cfg.PortMismatch, MismatchReject, MismatchRefresh)
	}
	if cfg.LinkExpiry <= 0 || cfg.SweepInterval <= 0 || cfg.DiscoveryInterval <= 0 {
		return fmt.Errorf("link_expiry, sweep_interval and discovery_interval must be positive")
	}
	if cfg.SweepInterval > cfg.LinkExpiry {
		return fmt.Errorf("sweep_interval (%s) must not exceed link_expiry (%s)", cfg.SweepInterval, cfg.LinkExpiry)
	}
	if cfg.DiscoveryInterval >= cfg.LinkExpiry {
		return fmt.Errorf("discovery_interval (%s) must be shorter than link_expiry (%s)", cfg.DiscoveryInterval, cfg.LinkExpiry)
	}
	if cfg.Fabric != nil {
		return FabricValidator(cfg.Fabric)
	}
	return nil
}

func FabricValidator(f *FabricCfg) error {
	seen := make([]SwitchId, 0, len(f.Switches))
	for _, sw := range f.Switches {
		if err := NameValidator(string(sw)); err != nil {
			return err
		}
		if slices.Contains(seen, sw) {
			return fmt.Errorf("duplicate switch: %s", sw)
		}
		seen = append(seen, sw)
	}
	if len(f.Graph) == 0 {
		return nil
	}
	_, err := f.Cables()
	return err
}
