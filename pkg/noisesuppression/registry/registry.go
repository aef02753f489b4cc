// Package registry keeps the noise suppression backends, so that the
// backend is chosen at construction time by name or by priority.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/voicerestore/pkg/audio"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
	"github.com/xaionaro-go/voicerestore/pkg/speechconfidence"
)

// Params describes the stream a backend is created for.
type Params struct {
	Channels   audio.Channel
	SampleRate audio.SampleRate

	// WindowSize and HopSize are in samples; zero values mean the
	// backend defaults.
	WindowSize int
	HopSize    int

	Config noisesuppression.Config

	// NewHint creates the speech confidence estimator of a channel;
	// nil means no external hint.
	NewHint func(sampleRate audio.SampleRate) (speechconfidence.Estimator, error)
}

type Factory interface {
	NewNoiseSuppression(ctx context.Context, params Params) (noisesuppression.NoiseSuppression, error)
	NewSampleProcessor(ctx context.Context, params Params) (noisesuppression.SampleProcessor, error)
}

type factoryWithPriority struct {
	Name     string
	Priority int
	Factory
}

var (
	factoryRegistryLocker sync.Mutex
	factoryRegistry       = map[string]factoryWithPriority{}
)

// Register adds a backend; it panics if the name is already taken.
func Register(
	name string,
	priority int,
	factory Factory,
) {
	factoryRegistryLocker.Lock()
	defer factoryRegistryLocker.Unlock()
	if _, ok := factoryRegistry[name]; ok {
		panic(fmt.Errorf("there is already registered a noise suppression factory with name '%s'", name))
	}
	factoryRegistry[name] = factoryWithPriority{
		Name:     name,
		Priority: priority,
		Factory:  factory,
	}
}

func sortedFactories() []factoryWithPriority {
	factoryRegistryLocker.Lock()
	defer factoryRegistryLocker.Unlock()
	var factoriesWithPriorities []factoryWithPriority
	for _, factory := range factoryRegistry {
		factoriesWithPriorities = append(factoriesWithPriorities, factory)
	}
	sort.Slice(factoriesWithPriorities, func(i, j int) bool {
		if factoriesWithPriorities[i].Priority != factoriesWithPriorities[j].Priority {
			return factoriesWithPriorities[i].Priority > factoriesWithPriorities[j].Priority
		}
		return factoriesWithPriorities[i].Name < factoriesWithPriorities[j].Name
	})
	return factoriesWithPriorities
}

// Names returns the registered backends, highest priority first.
func Names() []string {
	var names []string
	for _, factory := range sortedFactories() {
		names = append(names, factory.Name)
	}
	return names
}

// Factories returns the registered factories, highest priority first.
func Factories() []Factory {
	var factories []Factory
	for _, factory := range sortedFactories() {
		factories = append(factories, factory.Factory)
	}
	return factories
}

func lookup(name string) (Factory, error) {
	factoryRegistryLocker.Lock()
	defer factoryRegistryLocker.Unlock()
	factory, ok := factoryRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown noise suppression backend '%s'", name)
	}
	return factory.Factory, nil
}

// New creates the chunked noise suppressor of the named backend.
func New(ctx context.Context, name string, params Params) (noisesuppression.NoiseSuppression, error) {
	factory, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return factory.NewNoiseSuppression(ctx, params)
}

// NewSampleProcessor creates a single-channel processor of the named
// backend.
func NewSampleProcessor(ctx context.Context, name string, params Params) (noisesuppression.SampleProcessor, error) {
	factory, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return factory.NewSampleProcessor(ctx, params)
}

// NewAuto tries every backend in the order of priority and returns the
// first one that could be created.
func NewAuto(ctx context.Context, params Params) (noisesuppression.NoiseSuppression, string, error) {
	return newFirst(ctx, sortedFactories(), params)
}

func newFirst(
	ctx context.Context,
	factories []factoryWithPriority,
	params Params,
) (noisesuppression.NoiseSuppression, string, error) {
	var result *multierror.Error
	for _, factory := range factories {
		ns, err := factory.NewNoiseSuppression(ctx, params)
		if err == nil {
			return ns, factory.Name, nil
		}
		result = multierror.Append(result, fmt.Errorf("%s: %w", factory.Name, err))
	}
	if result == nil {
		return nil, "", fmt.Errorf("no noise suppression backends registered")
	}
	return nil, "", result
}
