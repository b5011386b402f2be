package world

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crystal-mush/gotinyclient/pkg/automation"
	"github.com/crystal-mush/gotinyclient/pkg/scripting"
)

// PluginFile is the on-disk definition of a plugin: metadata, the script
// source (inline, from a file, or both) and pre-declared triggers,
// aliases, timers and variables.
type PluginFile struct {
	Plugin struct {
		Name      string `yaml:"name"`
		ID        string `yaml:"id"`
		Author    string `yaml:"author"`
		Version   string `yaml:"version"`
		Purpose   string `yaml:"purpose"`
		Sequence  int    `yaml:"sequence"`
		SaveState bool   `yaml:"save_state"`
		Disabled  bool   `yaml:"disabled"`
	} `yaml:"plugin"`

	Script     string `yaml:"script"`
	ScriptFile string `yaml:"script_file"`

	Triggers  []RuleDef         `yaml:"triggers"`
	Aliases   []RuleDef         `yaml:"aliases"`
	Timers    []TimerDef        `yaml:"timers"`
	Variables map[string]string `yaml:"variables"`
}

// RuleDef declares one trigger or alias. Entities default to enabled and
// to the default sequence; a nil sequence means "use the default".
type RuleDef struct {
	Name              string `yaml:"name"`
	Label             string `yaml:"label"`
	Group             string `yaml:"group"`
	Match             string `yaml:"match"`
	Regexp            bool   `yaml:"regexp"`
	IgnoreCase        bool   `yaml:"ignore_case"`
	LowercaseCaptures bool   `yaml:"lowercase_captures"`
	Contents          string `yaml:"contents"`
	SendTo            string `yaml:"send_to"`
	Variable          string `yaml:"variable"`
	Script            string `yaml:"script"`
	Sequence          *int   `yaml:"sequence"`
	Disabled          bool   `yaml:"disabled"`
	OneShot           bool   `yaml:"one_shot"`
	Temporary         bool   `yaml:"temporary"`
	KeepEvaluating    bool   `yaml:"keep_evaluating"`
	OmitFromLog       bool   `yaml:"omit_from_log"`
	OmitFromOutput    bool   `yaml:"omit_from_output"`
	ExpandVariables   bool   `yaml:"expand_variables"`

	// Trigger-only fields.
	Repeat       bool `yaml:"repeat"`
	MultiLine    bool `yaml:"multi_line"`
	LinesToMatch int  `yaml:"lines_to_match"`

	// Alias-only fields.
	Echo            bool `yaml:"echo"`
	OmitFromHistory bool `yaml:"omit_from_history"`
}

// TimerDef declares one timer. Exactly one of interval or at must be set.
type TimerDef struct {
	Name                   string `yaml:"name"`
	Label                  string `yaml:"label"`
	Group                  string `yaml:"group"`
	Interval               string `yaml:"interval"` // time.Duration string
	Offset                 string `yaml:"offset"`
	At                     string `yaml:"at"` // "HH:MM:SS"
	Contents               string `yaml:"contents"`
	SendTo                 string `yaml:"send_to"`
	Variable               string `yaml:"variable"`
	Script                 string `yaml:"script"`
	Disabled               bool   `yaml:"disabled"`
	OneShot                bool   `yaml:"one_shot"`
	Temporary              bool   `yaml:"temporary"`
	OmitFromLog            bool   `yaml:"omit_from_log"`
	OmitFromOutput         bool   `yaml:"omit_from_output"`
	ActiveWhenDisconnected bool   `yaml:"active_when_disconnected"`
}

func (d *RuleDef) rule() (automation.Rule, error) {
	send := automation.SendToWorld
	if d.SendTo != "" {
		var err error
		if send, err = automation.ParseSendTo(d.SendTo); err != nil {
			return automation.Rule{}, fmt.Errorf("%s: %w", d.Name, err)
		}
	}
	seq := automation.DefaultSequence
	if d.Sequence != nil {
		seq = *d.Sequence
	}
	return automation.Rule{
		Name:  d.Name,
		Label: d.Label,
		Group: d.Group,
		Pattern: automation.Pattern{
			Text:              d.Match,
			Regexp:            d.Regexp,
			IgnoreCase:        d.IgnoreCase,
			LowercaseCaptures: d.LowercaseCaptures,
		},
		Contents:        d.Contents,
		SendTo:          send,
		Variable:        d.Variable,
		Script:          d.Script,
		Sequence:        seq,
		Enabled:         !d.Disabled,
		OneShot:         d.OneShot,
		Temporary:       d.Temporary,
		KeepEvaluating:  d.KeepEvaluating,
		OmitFromLog:     d.OmitFromLog,
		OmitFromOutput:  d.OmitFromOutput,
		ExpandVariables: d.ExpandVariables,
	}, nil
}

// Trigger converts the definition to a trigger.
func (d *RuleDef) Trigger() (*automation.Trigger, error) {
	r, err := d.rule()
	if err != nil {
		return nil, err
	}
	return &automation.Trigger{
		Rule:         r,
		Repeat:       d.Repeat,
		MultiLine:    d.MultiLine,
		LinesToMatch: d.LinesToMatch,
	}, nil
}

// Alias converts the definition to an alias.
func (d *RuleDef) Alias() (*automation.Alias, error) {
	r, err := d.rule()
	if err != nil {
		return nil, err
	}
	return &automation.Alias{
		Rule:            r,
		EchoAlias:       d.Echo,
		OmitFromHistory: d.OmitFromHistory,
	}, nil
}

// Timer converts the definition to a timer.
func (d *TimerDef) Timer() (*automation.Timer, error) {
	send := automation.SendToWorld
	if d.SendTo != "" {
		var err error
		if send, err = automation.ParseSendTo(d.SendTo); err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
	}
	t := &automation.Timer{
		Name:                   d.Name,
		Label:                  d.Label,
		Group:                  d.Group,
		Contents:               d.Contents,
		SendTo:                 send,
		Variable:               d.Variable,
		Script:                 d.Script,
		Enabled:                !d.Disabled,
		OneShot:                d.OneShot,
		Temporary:              d.Temporary,
		OmitFromLog:            d.OmitFromLog,
		OmitFromOutput:         d.OmitFromOutput,
		ActiveWhenDisconnected: d.ActiveWhenDisconnected,
	}
	switch {
	case d.At != "":
		t.Kind = automation.TimerAtTime
		if _, err := fmt.Sscanf(d.At, "%d:%d:%d", &t.AtHour, &t.AtMinute, &t.AtSecond); err != nil {
			return nil, fmt.Errorf("%s: parsing at-time %q: %w", d.Name, d.At, err)
		}
	default:
		t.Kind = automation.TimerInterval
		iv, err := time.ParseDuration(d.Interval)
		if err != nil {
			return nil, fmt.Errorf("%s: parsing interval %q: %w", d.Name, d.Interval, err)
		}
		t.Interval = iv
		if d.Offset != "" {
			if t.Offset, err = time.ParseDuration(d.Offset); err != nil {
				return nil, fmt.Errorf("%s: parsing offset %q: %w", d.Name, d.Offset, err)
			}
		}
	}
	return t, nil
}

// ParsePluginFile decodes a plugin definition.
func ParsePluginFile(data []byte) (*PluginFile, error) {
	var pf PluginFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing plugin file: %w", err)
	}
	if pf.Plugin.Name == "" || pf.Plugin.ID == "" {
		return nil, fmt.Errorf("plugin file needs a name and an id")
	}
	return &pf, nil
}

// LoadPlugin reads a plugin definition from disk, creates the plugin's
// scope and interpreter, installs its entities, runs its script, restores
// its saved state and inserts it into the evaluation order.
func (w *World) LoadPlugin(path string) (*Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plugin %s: %w", path, err)
	}
	pf, err := ParsePluginFile(data)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", path, err)
	}
	if w.findPlugin(pf.Plugin.ID) != nil {
		return nil, fmt.Errorf("plugin %s: %w", pf.Plugin.ID, ErrDuplicateName)
	}

	p := &Plugin{
		Scope:     *newScope(pf.Plugin.Name),
		ID:        pf.Plugin.ID,
		Author:    pf.Plugin.Author,
		Version:   pf.Plugin.Version,
		Purpose:   pf.Plugin.Purpose,
		Sequence:  pf.Plugin.Sequence,
		Enabled:   !pf.Plugin.Disabled,
		SaveState: pf.Plugin.SaveState,
		FilePath:  path,
	}
	engine, err := scripting.NewYaegi(w.exportsFor(p))
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", p.Scope.Name, err)
	}
	p.engine = engine

	if err := w.installEntities(p, pf); err != nil {
		engine.Close()
		return nil, fmt.Errorf("plugin %s: %w", p.Scope.Name, err)
	}

	src := pf.Script
	if pf.ScriptFile != "" {
		ext, err := os.ReadFile(filepath.Join(filepath.Dir(path), pf.ScriptFile))
		if err != nil {
			engine.Close()
			return nil, fmt.Errorf("plugin %s: reading script: %w", p.Scope.Name, err)
		}
		src = strings.Join([]string{src, string(ext)}, "\n")
	}
	if strings.TrimSpace(src) != "" {
		w.withScope(p, func() {
			err = engine.Run(src, "plugin "+p.Scope.Name)
		})
		if err != nil {
			engine.Close()
			return nil, err
		}
	}

	if p.SaveState {
		if err := w.LoadPluginState(p); err != nil {
			engine.Close()
			return nil, fmt.Errorf("plugin %s: %w", p.Scope.Name, err)
		}
	}

	if err := w.addPlugin(p); err != nil {
		engine.Close()
		return nil, err
	}
	return p, nil
}

func (w *World) installEntities(p *Plugin, pf *PluginFile) error {
	for i := range pf.Triggers {
		t, err := pf.Triggers[i].Trigger()
		if err != nil {
			return err
		}
		if err := p.Scope.AddTrigger(t); err != nil {
			return err
		}
	}
	for i := range pf.Aliases {
		a, err := pf.Aliases[i].Alias()
		if err != nil {
			return err
		}
		if err := p.Scope.AddAlias(a); err != nil {
			return err
		}
	}
	for i := range pf.Timers {
		t, err := pf.Timers[i].Timer()
		if err != nil {
			return err
		}
		if err := p.Scope.AddTimer(t); err != nil {
			return err
		}
		t.Reset(w.now())
	}
	for name, value := range pf.Variables {
		if err := p.Scope.SetVariable(name, value); err != nil {
			return err
		}
	}
	return nil
}
