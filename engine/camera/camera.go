package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/chewxy/math32"
)

// cameraImpl is the implementation of the Camera interface.
type cameraImpl struct {
	mu *sync.Mutex

	position common.Vec3
	yaw      float32
	pitch    float32
	up       common.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32
}

// Camera is a first-person perspective camera described by a position and yaw/pitch angles.
// It is stored as a live component and marshalled into the camera uniform every frame.
type Camera interface {
	// Position returns the world-space eye position.
	//
	// Returns:
	//   - common.Vec3: the eye position
	Position() common.Vec3

	// Yaw returns the rotation about the up axis in radians. Zero looks down -Z.
	//
	// Returns:
	//   - float32: the yaw angle
	Yaw() float32

	// Pitch returns the rotation above the horizon in radians.
	//
	// Returns:
	//   - float32: the pitch angle
	Pitch() float32

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: the field of view
	Fov() float32

	// Aspect returns the viewport aspect ratio (width/height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: the near plane
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: the far plane
	Far() float32

	// Forward returns the unit view direction derived from yaw and pitch.
	//
	// Returns:
	//   - common.Vec3: the view direction
	Forward() common.Vec3

	// ViewProjectionMatrix computes projection * view.
	//
	// Returns:
	//   - common.Mat4: the combined matrix, column-major
	ViewProjectionMatrix() common.Mat4

	// Uniform builds the GPU uniform for the current camera state.
	//
	// Returns:
	//   - GPUCameraUniform: the uniform ready to marshal
	Uniform() GPUCameraUniform

	// SetPosition moves the eye.
	//
	// Parameters:
	//   - p: the new world-space position
	SetPosition(p common.Vec3)

	// SetRotation sets the yaw and pitch. Pitch is clamped just short of straight up or down.
	//
	// Parameters:
	//   - yaw: the yaw angle in radians
	//   - pitch: the pitch angle in radians
	SetRotation(yaw, pitch float32)

	// Resize updates the aspect ratio from a drawable size. A zero height is ignored.
	//
	// Parameters:
	//   - width, height: the drawable size in pixels
	Resize(width, height uint32)
}

var _ Camera = &cameraImpl{}

const maxPitch = math32.Pi/2 - 0.001

// NewCamera creates a camera at position looking along yaw/pitch with an aspect derived from the
// drawable size. Defaults: 45 degree vertical FOV, near 0.1, far 100.
//
// Parameters:
//   - position: the eye position
//   - yaw, pitch: the view angles in radians
//   - width, height: the drawable size used for the aspect ratio
//   - options: optional CameraBuilderOption overrides
//
// Returns:
//   - Camera: the new camera
func NewCamera(position common.Vec3, yaw, pitch float32, width, height uint32, options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		position: position,
		up:       common.Vec3{0, 1, 0},
		fov:      45 * math32.Pi / 180,
		aspect:   1,
		near:     0.1,
		far:      100,
	}
	c.setRotation(yaw, pitch)
	if height > 0 {
		c.aspect = float32(width) / float32(height)
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *cameraImpl) Position() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Yaw() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.yaw
}

func (c *cameraImpl) Pitch() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pitch
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Forward() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forward()
}

func (c *cameraImpl) ViewProjectionMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	view := common.LookTo(c.position, c.forward(), c.up)
	proj := common.Perspective(c.fov, c.aspect, c.near, c.far)
	return proj.Mul(view)
}

func (c *cameraImpl) Uniform() GPUCameraUniform {
	return GPUCameraUniform{ViewProj: c.ViewProjectionMatrix()}
}

func (c *cameraImpl) SetPosition(p common.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = p
}

func (c *cameraImpl) SetRotation(yaw, pitch float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setRotation(yaw, pitch)
}

func (c *cameraImpl) Resize(width, height uint32) {
	if height == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = float32(width) / float32(height)
}

func (c *cameraImpl) setRotation(yaw, pitch float32) {
	c.yaw = yaw
	c.pitch = max(-maxPitch, min(maxPitch, pitch))
}

func (c *cameraImpl) forward() common.Vec3 {
	sy, cy := math32.Sincos(c.yaw)
	sp, cp := math32.Sincos(c.pitch)
	return common.Vec3{sy * cp, sp, -cy * cp}
}
