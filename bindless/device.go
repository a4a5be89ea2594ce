// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bindless

// DeviceBinder is the peripheral collaborator the Table asks to perform the
// actual Vulkan descriptor-set work (spec §1: the core speaks only through
// the interfaces it consumes). The Vulkan HAL backend implements this over
// VkDescriptorSetLayout/VkDescriptorSet/VkPipelineLayout so that package
// bindless itself never imports a concrete Vulkan binding.
type DeviceBinder interface {
	// DescriptorSet returns the concrete, backend-owned descriptor set that
	// backs the given kind. Called once per kind at execute time.
	DescriptorSet(kind Kind) (set uintptr, ok bool)

	// WriteDescriptor writes resource's descriptor into kind's set at slot,
	// as an UPDATE_AFTER_BIND write — legal during recording provided the
	// slot is not part of an inflight submission.
	WriteDescriptor(kind Kind, slot uint32, resource uintptr)

	// PipelineLayout returns a layout compatible with every kind's
	// descriptor set plus a single push-constant range spanning all shader
	// stages, sized pushConstantSize bytes.
	PipelineLayout(pushConstantSize uint32) (layout uintptr, err error)
}

// DescriptorSets returns the backend's concrete descriptor set for each
// populated kind, keyed by Kind — the "one set per kind" view spec §4.1
// requires be handed to the executor at submit time.
func (t *Table) DescriptorSets(dev DeviceBinder) map[Kind]uintptr {
	sets := make(map[Kind]uintptr, int(kindCount))
	for k := Kind(0); k < kindCount; k++ {
		if set, ok := dev.DescriptorSet(k); ok {
			sets[k] = set
		}
	}
	return sets
}

// PipelineLayout asks dev for a layout compatible with all of the table's
// kind-sets plus a push-constant range of pushConstantSize bytes spanning
// every shader stage.
func (t *Table) PipelineLayout(dev DeviceBinder, pushConstantSize uint32) (uintptr, error) {
	return dev.PipelineLayout(pushConstantSize)
}
