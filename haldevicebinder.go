package rmg

import (
	"fmt"

	"github.com/vkrmg/rmg/bindless"
	"github.com/vkrmg/rmg/hal"
	gputypes "github.com/vkrmg/rmg/types"
)

// HALDeviceBinder implements bindless.DeviceBinder directly on top of a
// hal.Device, so a Recorder can bind real bindless resources through the
// same CreateBindGroupLayout/CreateBindGroup/CreatePipelineLayout surface
// device.go's bring-up path already exposes, instead of leaving
// bindless.DeviceBinder satisfied only by test fakes.
//
// hal's BindGroupLayoutEntry models a single WebGPU-style resource binding,
// not a Vulkan descriptor-indexing array, so each bindless.Kind gets one
// binding whose bound resource is whatever the most recent WriteDescriptor
// call supplied: a single-resource stand-in for the slot-indexed array a
// concrete Vulkan binder would expose once the vk.xml-generated bindings
// this repo is missing (see "Vulkan binding gap" in DESIGN.md) land.
// KindAccelerationStructure has no corresponding types.BindingResource
// variant and is left unbound; WriteDescriptor is a no-op for it.
type HALDeviceBinder struct {
	dev hal.Device

	layouts map[bindless.Kind]hal.BindGroupLayout
	groups  map[bindless.Kind]hal.BindGroup
	ids     map[bindless.Kind]uintptr

	nextID       uintptr
	layoutByID   map[uintptr]hal.PipelineLayout
	layoutBySize map[uint32]uintptr
}

// NewHALDeviceBinder creates one bind group layout per bindable kind on
// dev. Returns an error if dev rejects any layout (e.g. an unsupported
// binding type).
func NewHALDeviceBinder(dev hal.Device) (*HALDeviceBinder, error) {
	b := &HALDeviceBinder{
		dev:          dev,
		layouts:      make(map[bindless.Kind]hal.BindGroupLayout),
		groups:       make(map[bindless.Kind]hal.BindGroup),
		ids:          make(map[bindless.Kind]uintptr),
		layoutByID:   make(map[uintptr]hal.PipelineLayout),
		layoutBySize: make(map[uint32]uintptr),
	}

	for _, kind := range bindableKinds {
		entry, ok := layoutEntryForKind(kind)
		if !ok {
			continue
		}
		layout, err := dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("bindless-%s-layout", kind),
			Entries: []gputypes.BindGroupLayoutEntry{entry},
		})
		if err != nil {
			return nil, fmt.Errorf("rmg: bind group layout for %s: %w", kind, err)
		}
		b.layouts[kind] = layout
	}
	return b, nil
}

// bindableKinds are the bindless.Kind values with a types.BindingResource
// representation; KindAccelerationStructure is omitted (see type doc).
var bindableKinds = []bindless.Kind{
	bindless.KindStorageBuffer,
	bindless.KindStorageImage,
	bindless.KindSampledImage,
	bindless.KindSampler,
}

func layoutEntryForKind(kind bindless.Kind) (gputypes.BindGroupLayoutEntry, bool) {
	entry := gputypes.BindGroupLayoutEntry{Binding: 0, Visibility: gputypes.ShaderStageCompute | gputypes.ShaderStageFragment}
	switch kind {
	case bindless.KindStorageBuffer:
		entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
	case bindless.KindStorageImage:
		entry.Storage = &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessReadWrite,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case bindless.KindSampledImage:
		entry.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case bindless.KindSampler:
		entry.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	default:
		return gputypes.BindGroupLayoutEntry{}, false
	}
	return entry, true
}

func bindingResourceForKind(kind bindless.Kind, resource uintptr) (gputypes.BindingResource, bool) {
	switch kind {
	case bindless.KindStorageBuffer:
		return gputypes.BufferBinding{Buffer: gputypes.BufferHandle(resource)}, true
	case bindless.KindStorageImage, bindless.KindSampledImage:
		return gputypes.TextureViewBinding{TextureView: gputypes.TextureViewHandle(resource)}, true
	case bindless.KindSampler:
		return gputypes.SamplerBinding{Sampler: gputypes.SamplerHandle(resource)}, true
	default:
		return nil, false
	}
}

// DescriptorSet returns the synthetic id of kind's bind group, if any
// resource has been written for it yet.
func (b *HALDeviceBinder) DescriptorSet(kind bindless.Kind) (uintptr, bool) {
	id, ok := b.ids[kind]
	return id, ok
}

// WriteDescriptor rebuilds kind's bind group with resource bound at
// binding 0. hal.Device has no partial-descriptor-update call, so each
// write replaces the whole one-entry bind group; slot is accepted for
// interface compatibility with a future per-slot Vulkan binder but is not
// otherwise used here.
func (b *HALDeviceBinder) WriteDescriptor(kind bindless.Kind, _ uint32, resource uintptr) {
	layout, ok := b.layouts[kind]
	if !ok {
		return
	}
	res, ok := bindingResourceForKind(kind, resource)
	if !ok {
		return
	}

	group, err := b.dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   fmt.Sprintf("bindless-%s-group", kind),
		Layout:  layout,
		Entries: []gputypes.BindGroupEntry{{Binding: 0, Resource: res}},
	})
	if err != nil {
		return
	}

	if old, ok := b.groups[kind]; ok {
		b.dev.DestroyBindGroup(old)
	}
	b.groups[kind] = group

	if _, ok := b.ids[kind]; !ok {
		b.nextID++
		b.ids[kind] = b.nextID
	}
}

// ResolveBindGroup returns the real hal.BindGroup behind the synthetic id
// DescriptorSet returned for kind, so a pass's Record hook can bind it
// through hal.Device rather than treating the id as opaque.
func (b *HALDeviceBinder) ResolveBindGroup(id uintptr) (hal.BindGroup, bool) {
	for kind, kindID := range b.ids {
		if kindID == id {
			return b.groups[kind], true
		}
	}
	return nil, false
}

// ResolvePipelineLayout returns the real hal.PipelineLayout behind the
// synthetic id a PipelineLayout call returned.
func (b *HALDeviceBinder) ResolvePipelineLayout(id uintptr) (hal.PipelineLayout, bool) {
	pl, ok := b.layoutByID[id]
	return pl, ok
}

// PipelineLayout builds (and caches, keyed by pushConstantSize) a pipeline
// layout spanning every bound kind's bind group layout plus one
// push-constant range covering pushConstantSize bytes across every stage.
func (b *HALDeviceBinder) PipelineLayout(pushConstantSize uint32) (uintptr, error) {
	if id, ok := b.layoutBySize[pushConstantSize]; ok {
		return id, nil
	}

	layouts := make([]hal.BindGroupLayout, 0, len(bindableKinds))
	for _, kind := range bindableKinds {
		if layout, ok := b.layouts[kind]; ok {
			layouts = append(layouts, layout)
		}
	}

	pl, err := b.dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "bindless-pipeline-layout",
		BindGroupLayouts: layouts,
		PushConstantRanges: []hal.PushConstantRange{{
			Stages: gputypes.ShaderStageCompute | gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Range:  hal.Range{Start: 0, End: pushConstantSize},
		}},
	})
	if err != nil {
		return 0, fmt.Errorf("rmg: bindless pipeline layout: %w", err)
	}

	b.nextID++
	id := b.nextID
	b.layoutByID[id] = pl
	b.layoutBySize[pushConstantSize] = id
	return id, nil
}
