// Package world implements the automation engine of the client: the root
// World scope plus loaded plugins, trigger/alias evaluation over incoming
// lines and typed commands, the timer scheduler, the action router and the
// script callback dispatcher. The engine is single threaded; the caller
// serializes line delivery, command input and the periodic tick.
package world

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/crystal-mush/gotinyclient/pkg/automation"
	"github.com/crystal-mush/gotinyclient/pkg/scripting"
)

// Lookup and mutation errors for the scope collections.
var (
	ErrTriggerNotFound  = errors.New("trigger not found")
	ErrAliasNotFound    = errors.New("alias not found")
	ErrTimerNotFound    = errors.New("timer not found")
	ErrVariableNotFound = errors.New("variable not found")
	ErrDuplicateName    = errors.New("name already in use")
)

// Scope owns one rule set: the triggers, aliases, timers and variables of
// the world or of a single plugin, plus that scope's isolated interpreter.
// Collections are keyed by name; the evaluator never walks the maps
// directly but uses the sequence-sorted views, rebuilt when dirty.
type Scope struct {
	Name string

	triggers  map[string]*automation.Trigger
	aliases   map[string]*automation.Alias
	timers    map[string]*automation.Timer
	variables map[string]*automation.Variable
	arrays    map[string]map[string]string

	triggersDirty  bool
	aliasesDirty   bool
	sortedTriggers []*automation.Trigger
	sortedAliases  []*automation.Alias

	engine scripting.Engine

	// callbacks caches existence of the scope's lifecycle callbacks
	// (OnPluginInstall and friends). Entity callbacks are cached on the
	// entity itself.
	callbacks map[string]automation.CallbackState

	// Names whose deletion was requested while the entity was executing.
	// The evaluator removes them once the action completes.
	doomedTriggers map[string]bool
	doomedAliases  map[string]bool
	doomedTimers   map[string]bool
}

func newScope(name string) *Scope {
	return &Scope{
		Name:           name,
		triggers:       make(map[string]*automation.Trigger),
		aliases:        make(map[string]*automation.Alias),
		timers:         make(map[string]*automation.Timer),
		variables:      make(map[string]*automation.Variable),
		arrays:         make(map[string]map[string]string),
		callbacks:      make(map[string]automation.CallbackState),
		doomedTriggers: make(map[string]bool),
		doomedAliases:  make(map[string]bool),
		doomedTimers:   make(map[string]bool),
	}
}

// Engine returns the scope's interpreter, which may be nil before the
// scope's script has been installed.
func (s *Scope) Engine() scripting.Engine { return s.engine }

// AddTrigger adds a validated trigger. Names are unique per scope.
func (s *Scope) AddTrigger(t *automation.Trigger) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("trigger %s: %w", t.Name, err)
	}
	if _, ok := s.triggers[t.Name]; ok {
		return fmt.Errorf("trigger %s: %w", t.Name, ErrDuplicateName)
	}
	s.triggers[t.Name] = t
	s.triggersDirty = true
	return nil
}

// Trigger looks a trigger up by name.
func (s *Scope) Trigger(name string) (*automation.Trigger, error) {
	t, ok := s.triggers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTriggerNotFound, name)
	}
	return t, nil
}

// DeleteTrigger removes a trigger. If the trigger is mid-action the
// removal is deferred until the action completes.
func (s *Scope) DeleteTrigger(name string) error {
	t, ok := s.triggers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTriggerNotFound, name)
	}
	if t.Executing {
		s.doomedTriggers[name] = true
		return nil
	}
	delete(s.triggers, name)
	s.triggersDirty = true
	return nil
}

// EnableTrigger flips a trigger's enabled flag.
func (s *Scope) EnableTrigger(name string, enabled bool) error {
	t, ok := s.triggers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTriggerNotFound, name)
	}
	t.Enabled = enabled
	return nil
}

// EnableTriggerGroup flips every trigger in the group and returns how
// many were affected.
func (s *Scope) EnableTriggerGroup(group string, enabled bool) int {
	n := 0
	for _, t := range s.triggers {
		if t.Group == group {
			t.Enabled = enabled
			n++
		}
	}
	return n
}

// TriggerNames returns the trigger names in sorted order.
func (s *Scope) TriggerNames() []string {
	return sortedNames(s.triggers)
}

// sortedTriggerView returns the triggers ordered by sequence then name.
// Rebuilds allocate a fresh slice: a scan holding the previous view must
// keep seeing it unchanged even if a mid-scan action mutates the map.
func (s *Scope) sortedTriggerView() []*automation.Trigger {
	if s.triggersDirty || len(s.sortedTriggers) != len(s.triggers) {
		view := make([]*automation.Trigger, 0, len(s.triggers))
		for _, t := range s.triggers {
			view = append(view, t)
		}
		sort.SliceStable(view, func(i, j int) bool {
			a, b := view[i], view[j]
			if a.Sequence != b.Sequence {
				return a.Sequence < b.Sequence
			}
			return a.Name < b.Name
		})
		s.sortedTriggers = view
		s.triggersDirty = false
	}
	return s.sortedTriggers
}

// AddAlias adds a validated alias.
func (s *Scope) AddAlias(a *automation.Alias) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("alias %s: %w", a.Name, err)
	}
	if _, ok := s.aliases[a.Name]; ok {
		return fmt.Errorf("alias %s: %w", a.Name, ErrDuplicateName)
	}
	s.aliases[a.Name] = a
	s.aliasesDirty = true
	return nil
}

// Alias looks an alias up by name.
func (s *Scope) Alias(name string) (*automation.Alias, error) {
	a, ok := s.aliases[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAliasNotFound, name)
	}
	return a, nil
}

// DeleteAlias removes an alias, deferring if it is mid-action.
func (s *Scope) DeleteAlias(name string) error {
	a, ok := s.aliases[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAliasNotFound, name)
	}
	if a.Executing {
		s.doomedAliases[name] = true
		return nil
	}
	delete(s.aliases, name)
	s.aliasesDirty = true
	return nil
}

// EnableAlias flips an alias's enabled flag.
func (s *Scope) EnableAlias(name string, enabled bool) error {
	a, ok := s.aliases[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAliasNotFound, name)
	}
	a.Enabled = enabled
	return nil
}

// EnableAliasGroup flips every alias in the group.
func (s *Scope) EnableAliasGroup(group string, enabled bool) int {
	n := 0
	for _, a := range s.aliases {
		if a.Group == group {
			a.Enabled = enabled
			n++
		}
	}
	return n
}

// AliasNames returns the alias names in sorted order.
func (s *Scope) AliasNames() []string {
	return sortedNames(s.aliases)
}

func (s *Scope) sortedAliasView() []*automation.Alias {
	if s.aliasesDirty || len(s.sortedAliases) != len(s.aliases) {
		view := make([]*automation.Alias, 0, len(s.aliases))
		for _, a := range s.aliases {
			view = append(view, a)
		}
		sort.SliceStable(view, func(i, j int) bool {
			x, y := view[i], view[j]
			if x.Sequence != y.Sequence {
				return x.Sequence < y.Sequence
			}
			return x.Name < y.Name
		})
		s.sortedAliases = view
		s.aliasesDirty = false
	}
	return s.sortedAliases
}

// AddTimer adds a validated timer. The caller resets its schedule.
func (s *Scope) AddTimer(t *automation.Timer) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("timer %s: %w", t.Name, err)
	}
	if _, ok := s.timers[t.Name]; ok {
		return fmt.Errorf("timer %s: %w", t.Name, ErrDuplicateName)
	}
	s.timers[t.Name] = t
	return nil
}

// Timer looks a timer up by name.
func (s *Scope) Timer(name string) (*automation.Timer, error) {
	t, ok := s.timers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTimerNotFound, name)
	}
	return t, nil
}

// DeleteTimer removes a timer, deferring if it is mid-action.
func (s *Scope) DeleteTimer(name string) error {
	t, ok := s.timers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTimerNotFound, name)
	}
	if t.Executing {
		s.doomedTimers[name] = true
		return nil
	}
	delete(s.timers, name)
	return nil
}

// EnableTimer flips a timer's enabled flag.
func (s *Scope) EnableTimer(name string, enabled bool) error {
	t, ok := s.timers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTimerNotFound, name)
	}
	t.Enabled = enabled
	return nil
}

// EnableTimerGroup flips every timer in the group.
func (s *Scope) EnableTimerGroup(group string, enabled bool) int {
	n := 0
	for _, t := range s.timers {
		if t.Group == group {
			t.Enabled = enabled
			n++
		}
	}
	return n
}

// TimerNames returns the timer names in sorted order.
func (s *Scope) TimerNames() []string {
	return sortedNames(s.timers)
}

// DeleteTemporary removes every temporary trigger, alias and timer,
// deferring any that are mid-action. It returns the number removed or
// deferred.
func (s *Scope) DeleteTemporary() int {
	n := 0
	for name, t := range s.triggers {
		if t.Temporary {
			if t.Executing {
				s.doomedTriggers[name] = true
			} else {
				delete(s.triggers, name)
				s.triggersDirty = true
			}
			n++
		}
	}
	for name, a := range s.aliases {
		if a.Temporary {
			if a.Executing {
				s.doomedAliases[name] = true
			} else {
				delete(s.aliases, name)
				s.aliasesDirty = true
			}
			n++
		}
	}
	for name, t := range s.timers {
		if t.Temporary {
			if t.Executing {
				s.doomedTimers[name] = true
			} else {
				delete(s.timers, name)
			}
			n++
		}
	}
	return n
}

// reapDoomed performs deletions that were deferred while the entity was
// executing. Called after each action completes.
func (s *Scope) reapDoomed() {
	for name := range s.doomedTriggers {
		if t, ok := s.triggers[name]; ok && !t.Executing {
			delete(s.triggers, name)
			delete(s.doomedTriggers, name)
			s.triggersDirty = true
		}
	}
	for name := range s.doomedAliases {
		if a, ok := s.aliases[name]; ok && !a.Executing {
			delete(s.aliases, name)
			delete(s.doomedAliases, name)
			s.aliasesDirty = true
		}
	}
	for name := range s.doomedTimers {
		if t, ok := s.timers[name]; ok && !t.Executing {
			delete(s.timers, name)
			delete(s.doomedTimers, name)
		}
	}
}

// SetVariable assigns a variable. Names are case-insensitive and stored
// lowercase.
func (s *Scope) SetVariable(name, contents string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ErrVariableNotFound
	}
	if v, ok := s.variables[name]; ok {
		v.Contents = contents
		v.UpdateCount++
		return nil
	}
	s.variables[name] = &automation.Variable{Name: name, Contents: contents, UpdateCount: 1}
	return nil
}

// Variable returns a variable's contents.
func (s *Scope) Variable(name string) (string, error) {
	v, ok := s.variables[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	return v.Contents, nil
}

// DeleteVariable removes a variable.
func (s *Scope) DeleteVariable(name string) error {
	name = strings.ToLower(name)
	if _, ok := s.variables[name]; !ok {
		return fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	delete(s.variables, name)
	return nil
}

// VariableNames returns the variable names in sorted order.
func (s *Scope) VariableNames() []string {
	return sortedNames(s.variables)
}

// VariableMap copies the variables into a plain map.
func (s *Scope) VariableMap() map[string]string {
	out := make(map[string]string, len(s.variables))
	for name, v := range s.variables {
		out[name] = v.Contents
	}
	return out
}

// SetArrayItem assigns one key of a named array, creating the array on
// first use.
func (s *Scope) SetArrayItem(array, key, value string) {
	arr, ok := s.arrays[array]
	if !ok {
		arr = make(map[string]string)
		s.arrays[array] = arr
	}
	arr[key] = value
}

// ArrayItem returns one key of a named array.
func (s *Scope) ArrayItem(array, key string) (string, bool) {
	arr, ok := s.arrays[array]
	if !ok {
		return "", false
	}
	v, ok := arr[key]
	return v, ok
}

// DeleteArrayItem removes one key of a named array.
func (s *Scope) DeleteArrayItem(array, key string) bool {
	arr, ok := s.arrays[array]
	if !ok {
		return false
	}
	if _, ok := arr[key]; !ok {
		return false
	}
	delete(arr, key)
	return true
}

// DeleteArray removes a whole named array.
func (s *Scope) DeleteArray(array string) bool {
	if _, ok := s.arrays[array]; !ok {
		return false
	}
	delete(s.arrays, array)
	return true
}

// ArrayMap copies the arrays into plain nested maps.
func (s *Scope) ArrayMap() map[string]map[string]string {
	out := make(map[string]map[string]string, len(s.arrays))
	for name, arr := range s.arrays {
		inner := make(map[string]string, len(arr))
		for k, v := range arr {
			inner[k] = v
		}
		out[name] = inner
	}
	return out
}

// clearState wipes variables and arrays, used when reloading saved state.
func (s *Scope) clearState() {
	s.variables = make(map[string]*automation.Variable)
	s.arrays = make(map[string]map[string]string)
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
