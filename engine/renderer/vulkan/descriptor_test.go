package vulkan

import "testing"

func TestDescriptorPoolSizesFor(t *testing.T) {
	tests := []struct {
		name                             string
		imageCount, materials, meshes    uint32
		wantSamplers, wantUBOs, wantSets uint32
	}{
		{
			name:       "triple buffered small scene",
			imageCount: 3, materials: 2, meshes: 4,
			wantSamplers: 5*2*3 + 3 + 2,
			wantUBOs:     (4 + 4 + 2) * 3,
			wantSets:     (2 + 4 + 2) * 3,
		},
		{
			name:       "double buffered single material",
			imageCount: 2, materials: 1, meshes: 1,
			wantSamplers: 5*1*2 + 2 + 2,
			wantUBOs:     (4 + 1 + 1) * 2,
			wantSets:     (2 + 1 + 1) * 2,
		},
		{
			name:       "empty scene still fits skybox",
			imageCount: 2, materials: 0, meshes: 0,
			wantSamplers: 2 + 2,
			wantUBOs:     4 * 2,
			wantSets:     2 * 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DescriptorPoolSizesFor(tt.imageCount, tt.materials, tt.meshes)
			if got.Samplers != tt.wantSamplers {
				t.Errorf("Samplers = %d, want %d", got.Samplers, tt.wantSamplers)
			}
			if got.UniformBuffers != tt.wantUBOs {
				t.Errorf("UniformBuffers = %d, want %d", got.UniformBuffers, tt.wantUBOs)
			}
			if got.MaxSets != tt.wantSets {
				t.Errorf("MaxSets = %d, want %d", got.MaxSets, tt.wantSets)
			}
			if got.StorageImages != 1 {
				t.Errorf("StorageImages = %d, want 1", got.StorageImages)
			}
		})
	}
}

// The backend allocates, per swapchain image, one scene set per material
// holding a uniform buffer and five samplers, plus one skybox set holding
// a uniform buffer and the cubemap sampler. The pool must cover that
// consumption for any scene size, or set allocation fails at load.
func TestPoolCoversAllocatedSets(t *testing.T) {
	for _, imageCount := range []uint32{2, 3} {
		for _, materials := range []uint32{0, 1, 10, 100} {
			for _, meshes := range []uint32{0, 1, 50} {
				sceneSets := materials * imageCount
				skyboxSets := imageCount

				needSamplers := MaterialSamplerCount*sceneSets + skyboxSets
				needUBOs := sceneSets + skyboxSets
				needSets := sceneSets + skyboxSets

				got := DescriptorPoolSizesFor(imageCount, materials, meshes)
				if got.Samplers < needSamplers {
					t.Errorf("images=%d materials=%d meshes=%d: Samplers = %d, need %d",
						imageCount, materials, meshes, got.Samplers, needSamplers)
				}
				if got.UniformBuffers < needUBOs {
					t.Errorf("images=%d materials=%d meshes=%d: UniformBuffers = %d, need %d",
						imageCount, materials, meshes, got.UniformBuffers, needUBOs)
				}
				if got.MaxSets < needSets {
					t.Errorf("images=%d materials=%d meshes=%d: MaxSets = %d, need %d",
						imageCount, materials, meshes, got.MaxSets, needSets)
				}
			}
		}
	}
}

func TestPoolGrowsWithImages(t *testing.T) {
	two := DescriptorPoolSizesFor(2, 3, 5)
	three := DescriptorPoolSizesFor(3, 3, 5)
	if three.MaxSets <= two.MaxSets {
		t.Errorf("MaxSets did not grow with image count: %d vs %d", two.MaxSets, three.MaxSets)
	}
	if three.Samplers <= two.Samplers {
		t.Errorf("Samplers did not grow with image count: %d vs %d", two.Samplers, three.Samplers)
	}
}
