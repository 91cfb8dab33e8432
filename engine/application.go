package engine

import (
	"path/filepath"

	"github.com/spaghettifunk/diffuse/engine/assets"
	"github.com/spaghettifunk/diffuse/engine/config"
	"github.com/spaghettifunk/diffuse/engine/core"
	amath "github.com/spaghettifunk/diffuse/engine/math"
	"github.com/spaghettifunk/diffuse/engine/platform"
	"github.com/spaghettifunk/diffuse/engine/renderer/components"
	"github.com/spaghettifunk/diffuse/engine/renderer/vulkan"
	"github.com/spaghettifunk/diffuse/engine/scene"
)

// Application owns the window, the renderer and the frame loop. One
// instance per process; the loop must run on the main thread because of
// GLFW.
type Application struct {
	cfg      *config.Config
	platform *platform.Platform
	renderer *vulkan.VulkanRenderer
	camera   *components.Camera
	watcher  *assets.ShaderWatcher

	clock    *core.Clock
	lastTime float64

	isRunning   bool
	isSuspended bool
}

func New(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	core.LogSetLevel(cfg.Level())

	p, err := platform.New()
	if err != nil {
		return nil, err
	}

	return &Application{
		cfg:      cfg,
		platform: p,
		renderer: vulkan.New(p, &cfg.Renderer),
		camera:   components.NewCamera(),
		clock:    core.NewClock(),
	}, nil
}

func (a *Application) Initialize() error {
	w := &a.cfg.Window
	if err := a.platform.Startup(w.Title, w.StartPosX, w.StartPosY, w.Width, w.Height); err != nil {
		return err
	}

	a.platform.OnResize = a.onResize
	a.camera.SetAspect(w.Width, w.Height)

	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	if err := a.renderer.Initialize(w.Title, w.Width, w.Height); err != nil {
		return err
	}

	if a.cfg.Assets.Watch {
		watcher, err := assets.NewShaderWatcher(a.cfg.Renderer.ShaderDir)
		if err != nil {
			core.LogWarn("shader watcher disabled: %s", err)
		} else {
			a.watcher = watcher
		}
	}

	if err := a.loadScene(); err != nil {
		return err
	}

	a.isRunning = true
	return nil
}

// loadScene builds the startup scene: a textured cube under a rotated
// root, lit against the prefiltered environment. Missing asset files fall
// back to solid colors so a bare checkout still renders.
func (a *Application) loadScene() error {
	s := scene.New()
	s.Vertices, s.Indices = cubeGeometry()
	s.Meshes = []scene.Mesh{
		{
			Name: "cube",
			Primitives: []scene.Primitive{
				{FirstIndex: 0, IndexCount: uint32(len(s.Indices)), MaterialIndex: 0},
			},
		},
	}
	s.Materials = []scene.Material{
		{
			Name:              "default",
			Albedo:            0,
			Normal:            -1,
			MetallicRoughness: -1,
			AmbientOcclusion:  -1,
			Emissive:          -1,
		},
	}

	root := s.AddNode(-1, scene.Node{
		Name:      "root",
		Transform: amath.NewMat4EulerY(amath.DegToRad(30)),
		MeshIndex: -1,
	})
	s.AddNode(root, scene.Node{
		Name:      "cube",
		Transform: amath.NewMat4Identity(),
		MeshIndex: 0,
	})

	albedo := a.loadImageOrSolid("albedo.png", 200, 200, 210, 255)
	envmap := a.loadImageOrSolid("environment.png", 96, 128, 180, 255)

	return a.renderer.LoadScene(s, []*assets.Image{albedo}, envmap)
}

func (a *Application) loadImageOrSolid(name string, r, g, b, alpha byte) *assets.Image {
	path := filepath.Join(a.cfg.Assets.Dir, name)
	img, err := assets.LoadImage(path)
	if err != nil {
		core.LogWarn("could not load '%s', using solid fallback: %s", path, err)
		return assets.NewSolidImage(r, g, b, alpha)
	}
	return img
}

func (a *Application) onResize(width, height uint32) {
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		a.isSuspended = true
		return
	}
	if a.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		a.isSuspended = false
	}
	a.camera.SetAspect(width, height)
	a.renderer.Resized(width, height)
}

func (a *Application) Run() error {
	a.clock.Start()
	a.clock.Update()
	a.lastTime = a.clock.Elapsed()

	for a.isRunning && !a.platform.ShouldClose() {
		a.platform.PumpMessages()

		if a.isSuspended {
			a.platform.WaitEvents()
			continue
		}

		a.clock.Update()
		currentTime := a.clock.Elapsed()
		frameElapsed := currentTime - a.lastTime
		a.lastTime = currentTime

		if a.watcher != nil && a.watcher.ConsumeDirty() {
			if err := a.renderer.ReloadPipelines(); err != nil {
				return err
			}
		}

		if err := a.renderer.Draw(a.camera); err != nil && err != core.ErrFrameSkipped {
			return err
		}

		core.MetricsUpdate(frameElapsed)
	}

	a.isRunning = false
	return nil
}

func (a *Application) Shutdown() error {
	if !a.isRunning && a.platform.Window == nil {
		return nil
	}
	a.isRunning = false

	if a.watcher != nil {
		a.watcher.Shutdown()
		a.watcher = nil
	}
	if err := a.renderer.Shutdown(); err != nil {
		return err
	}
	fps, frameTime := core.MetricsFrame()
	core.LogInfo("Shutting down after %.0f fps avg, %.2f ms/frame.", fps, frameTime)
	return a.platform.Shutdown()
}

// cubeGeometry returns a unit cube with per-face normals, tangents and a
// full 0..1 UV square on every face.
func cubeGeometry() ([]amath.Vertex, []uint32) {
	type face struct {
		normal  amath.Vec3
		tangent amath.Vec4
		corners [4]amath.Vec3
	}

	faces := []face{
		{ // +Z
			normal:  amath.NewVec3(0, 0, 1),
			tangent: amath.Vec4{X: 1, Y: 0, Z: 0, W: 1},
			corners: [4]amath.Vec3{{X: -0.5, Y: -0.5, Z: 0.5}, {X: 0.5, Y: -0.5, Z: 0.5}, {X: 0.5, Y: 0.5, Z: 0.5}, {X: -0.5, Y: 0.5, Z: 0.5}},
		},
		{ // -Z
			normal:  amath.NewVec3(0, 0, -1),
			tangent: amath.Vec4{X: -1, Y: 0, Z: 0, W: 1},
			corners: [4]amath.Vec3{{X: 0.5, Y: -0.5, Z: -0.5}, {X: -0.5, Y: -0.5, Z: -0.5}, {X: -0.5, Y: 0.5, Z: -0.5}, {X: 0.5, Y: 0.5, Z: -0.5}},
		},
		{ // +X
			normal:  amath.NewVec3(1, 0, 0),
			tangent: amath.Vec4{X: 0, Y: 0, Z: -1, W: 1},
			corners: [4]amath.Vec3{{X: 0.5, Y: -0.5, Z: 0.5}, {X: 0.5, Y: -0.5, Z: -0.5}, {X: 0.5, Y: 0.5, Z: -0.5}, {X: 0.5, Y: 0.5, Z: 0.5}},
		},
		{ // -X
			normal:  amath.NewVec3(-1, 0, 0),
			tangent: amath.Vec4{X: 0, Y: 0, Z: 1, W: 1},
			corners: [4]amath.Vec3{{X: -0.5, Y: -0.5, Z: -0.5}, {X: -0.5, Y: -0.5, Z: 0.5}, {X: -0.5, Y: 0.5, Z: 0.5}, {X: -0.5, Y: 0.5, Z: -0.5}},
		},
		{ // +Y
			normal:  amath.NewVec3(0, 1, 0),
			tangent: amath.Vec4{X: 1, Y: 0, Z: 0, W: 1},
			corners: [4]amath.Vec3{{X: -0.5, Y: 0.5, Z: 0.5}, {X: 0.5, Y: 0.5, Z: 0.5}, {X: 0.5, Y: 0.5, Z: -0.5}, {X: -0.5, Y: 0.5, Z: -0.5}},
		},
		{ // -Y
			normal:  amath.NewVec3(0, -1, 0),
			tangent: amath.Vec4{X: 1, Y: 0, Z: 0, W: 1},
			corners: [4]amath.Vec3{{X: -0.5, Y: -0.5, Z: -0.5}, {X: 0.5, Y: -0.5, Z: -0.5}, {X: 0.5, Y: -0.5, Z: 0.5}, {X: -0.5, Y: -0.5, Z: 0.5}},
		},
	}

	uvs := [4]amath.Vec2{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}

	vertices := make([]amath.Vertex, 0, len(faces)*4)
	indices := make([]uint32, 0, len(faces)*6)
	for _, f := range faces {
		base := uint32(len(vertices))
		for i := 0; i < 4; i++ {
			vertices = append(vertices, amath.Vertex{
				Position: f.corners[i],
				Normal:   f.normal,
				Tangent:  f.tangent,
				UV:       uvs[i],
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}
