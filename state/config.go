package state

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type EntryPolicy string

const (
	// EntryOptimistic marks entries installed/removed as soon as the topology handlers return
	EntryOptimistic EntryPolicy = "optimistic"
	// EntryExplicit only changes entry state when the transport confirms it
	EntryExplicit EntryPolicy = "explicit"
)

type PortMismatchPolicy string

const (
	// MismatchReject drops a liveness signal whose ports disagree with the known link
	MismatchReject PortMismatchPolicy = "reject"
	// MismatchRefresh refreshes the known link anyway, its ports are never rewritten
	MismatchRefresh PortMismatchPolicy = "refresh"
)

// FabricCfg describes a simulated switch fabric
type FabricCfg struct {
	Switches []SwitchId
	// Graph uses the group syntax understood by ParseGraph, every resulting pair is cabled once
	Graph []string
}

// LocalCfg represents controller-level configuration
type LocalCfg struct {
	Id                SwitchId           // name of this controller, used as the log prefix
	LogPath           string             `yaml:"log_path,omitempty"`           // if not empty, trellis will write to this file
	DebugAddr         string             `yaml:"debug_addr,omitempty"`         // address serving /debug/topology, /debug/metrics and /metrics
	EntryPolicy       EntryPolicy        `yaml:"entry_policy,omitempty"`       // optimistic or explicit
	PortMismatch      PortMismatchPolicy `yaml:"port_mismatch,omitempty"`      // reject or refresh
	LinkExpiry        time.Duration      `yaml:"link_expiry,omitempty"`        // links not seen for this long are dead
	SweepInterval     time.Duration      `yaml:"sweep_interval,omitempty"`     // how often expired links are swept
	DiscoveryInterval time.Duration      `yaml:"discovery_interval,omitempty"` // how often probes are sent out of every port
	Fabric            *FabricCfg         `yaml:",omitempty"`
}

// ExpandConfig fills in defaults for every unset field
func ExpandConfig(cfg *LocalCfg) {
	if cfg.Id == "" {
		cfg.Id = "trellis"
	}
	if cfg.DebugAddr == "" {
		cfg.DebugAddr = DefaultDebugAddr
	}
	if cfg.EntryPolicy == "" {
		cfg.EntryPolicy = EntryOptimistic
	}
	if cfg.PortMismatch == "" {
		cfg.PortMismatch = MismatchReject
	}
	if cfg.LinkExpiry == 0 {
		cfg.LinkExpiry = LinkExpiry
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = SweepInterval
	}
	if cfg.DiscoveryInterval == 0 {
		cfg.DiscoveryInterval = DiscoveryInterval
	}
}

// Cables expands the fabric graph into the set of switch pairs to cable
func (f *FabricCfg) Cables() ([]Pair[SwitchId, SwitchId], error) {
	names := make([]string, 0, len(f.Switches))
	for _, sw := range f.Switches {
		names = append(names, string(sw))
	}
	return ParseGraph(f.Graph, names)
}

func parseSymbolList(s string, validSymbols []string) ([]string, error) {
	spl := strings.Split(strings.TrimSpace(s), ",")
	line := make([]string, 0)
	for _, s := range spl {
		x := strings.TrimSpace(s)
		if x == "" {
			continue
		}
		if !slices.Contains(validSymbols, x) {
			return nil, fmt.Errorf(`%s is not a valid switch/group`, x)
		}
		line = append(line, x)
	}
	if len(line) == 0 {
		return nil, fmt.Errorf(`switch/group list must not be empty`)
	}
	slices.Sort(line)
	return line, nil
}

/*
ParseGraph Graph syntax is something like this:

Core = s1, s2

Edge = s3, s4, s5

Core, Edge // every core switch is cabled to every edge switch, but not within Core or Edge

Core, Core // every core switch is cabled to every other core switch

s8, s9 // s8 and s9 will be cabled

switches is the set of terminal names that groups evaluate down to
*/
func ParseGraph(graph []string, switches []string) ([]Pair[SwitchId, SwitchId], error) {
	parsedPairings := make([]Pair[string, string], 0)
	groups := make(map[string][]string)
	symbols := slices.Clone(switches)

	// pass 0, collect all symbols
	for _, line := range graph {
		line = strings.ToLower(strings.TrimSpace(line))
		if strings.Contains(line, "=") {
			spl := strings.Split(line, "=")
			if len(spl) != 2 {
				return nil, fmt.Errorf("invalid graph: %s. group definition must contain one '='", line)
			}
			grp := strings.TrimSpace(spl[0])
			if slices.Contains(switches, grp) {
				return nil, fmt.Errorf("group name must not be a switch name: %s", grp)
			}
			symbols = append(symbols, grp)
		}
	}
	slices.Sort(symbols)
	symbols = slices.Compact(symbols)

	// group -> groups it depends on, drained in topological order
	deps := make(map[string][]string)
	expansion := make(map[string][]string)

	// pass 1, parse lines
	for _, line := range graph {
		line = strings.ToLower(strings.TrimSpace(line))
		if strings.Contains(line, "=") {
			spl := strings.Split(line, "=")
			grp := strings.TrimSpace(spl[0])
			if _, ok := groups[grp]; ok {
				return nil, fmt.Errorf("duplicate group name: %s", grp)
			}
			lst, err := parseSymbolList(spl[1], symbols)
			if err != nil {
				return nil, err
			}
			grpDeps := make([]string, 0)
			for _, l := range lst {
				if slices.Contains(switches, l) {
					expansion[grp] = append(expansion[grp], l)
				} else {
					grpDeps = append(grpDeps, l)
				}
			}
			slices.Sort(grpDeps)
			deps[grp] = slices.Compact(grpDeps)
			groups[grp] = lst
		} else {
			names, err := parseSymbolList(line, symbols)
			if err != nil {
				return nil, err
			}
			if len(names) < 2 {
				return nil, fmt.Errorf("invalid pairing, %v", names)
			}
			for i, a := range names {
				for _, b := range names[:i] {
					parsedPairings = append(parsedPairings, MakeSortedPair(b, a))
				}
			}
			SortPairs(parsedPairings)
			parsedPairings = slices.Compact(parsedPairings)
		}
	}

	// pass 2, expand groups in dependency order
	for len(deps) > 0 {
		var free string
		for k, v := range deps {
			if len(v) == 0 {
				free = k
				break
			}
		}
		if free == "" {
			cycle := make([]string, 0, len(deps))
			for grp := range deps {
				cycle = append(cycle, grp)
			}
			slices.Sort(cycle)
			return nil, fmt.Errorf("cycle detected in graph: %v", cycle)
		}
		delete(deps, free)

		for k, kDeps := range deps {
			if !slices.Contains(kDeps, free) {
				continue
			}
			expansion[k] = append(expansion[k], expansion[free]...)
			slices.Sort(expansion[k])
			expansion[k] = slices.Compact(expansion[k])
			deps[k] = slices.DeleteFunc(kDeps, func(d string) bool {
				return d == free
			})
		}
	}

	expand := func(sym string) []SwitchId {
		if slices.Contains(switches, sym) {
			return []SwitchId{SwitchId(sym)}
		}
		out := make([]SwitchId, 0, len(expansion[sym]))
		for _, exp := range expansion[sym] {
			out = append(out, SwitchId(exp))
		}
		return out
	}

	// pass 3, rewrite pairings into switch pairs
	pairings := make([]Pair[SwitchId, SwitchId], 0)
	for _, pair := range parsedPairings {
		for _, x := range expand(pair.V1) {
			for _, y := range expand(pair.V2) {
				if x != y {
					pairings = append(pairings, MakeSortedPair(x, y))
				}
			}
		}
	}
	SortPairs(pairings)
	return slices.Compact(pairings), nil
}
