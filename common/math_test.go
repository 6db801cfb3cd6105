package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func assertMatNear(t *testing.T, want, got Mat4) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "element %d", i)
	}
}

func assertVecNear(t *testing.T, want, got Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "component %d", i)
	}
}

func TestComposeTRSAppliesScaleRotationTranslation(t *testing.T) {
	m := ComposeTRS(V3(1, 2, 3), QuatIdentity(), V3(2, 3, 4))
	assertVecNear(t, V3(3, 5, 7), m.MulPoint(V3(1, 1, 1)))

	rot := QuatFromAxisAngle(Vec3Up, math32.Pi/2)
	m = ComposeTRS(V3(0, 0, 0), rot, Vec3One)
	assertVecNear(t, V3(0, 0, -1), m.MulPoint(V3(1, 0, 0)))
}

func TestMat4MulIdentity(t *testing.T) {
	m := ComposeTRS(V3(4, -2, 1), QuatFromAxisAngle(V3(1, 1, 0), 0.7), V3(1, 2, 1))
	assertMatNear(t, m, Identity().Mul(m))
	assertMatNear(t, m, m.Mul(Identity()))
}

func TestMat4MulOrder(t *testing.T) {
	translate := Translation(V3(10, 0, 0))
	scale := ComposeTRS(Vec3Zero, QuatIdentity(), V3(2, 2, 2))

	// translate * scale scales first.
	assertVecNear(t, V3(12, 0, 0), translate.Mul(scale).MulPoint(V3(1, 0, 0)))
	assertVecNear(t, V3(22, 0, 0), scale.Mul(translate).MulPoint(V3(1, 0, 0)))
}

func TestInverse(t *testing.T) {
	m := ComposeTRS(V3(1, 2, 3), QuatFromAxisAngle(V3(0, 1, 1), 1.2), V3(2, 0.5, 3))
	inv, ok := m.Inverse()
	assert.True(t, ok)
	assertMatNear(t, Identity(), m.Mul(inv))

	_, ok = Mat4{}.Inverse()
	assert.False(t, ok)
}

func TestDecomposeTRSRoundTrip(t *testing.T) {
	pos := V3(-3, 4, 0.5)
	rot := QuatFromAxisAngle(V3(1, 2, 3), 0.9)
	scale := V3(1.5, 2, 0.25)

	gotPos, gotRot, gotScale := DecomposeTRS(ComposeTRS(pos, rot, scale))
	assertVecNear(t, pos, gotPos)
	assertVecNear(t, scale, gotScale)
	assertMatNear(t, ComposeTRS(pos, rot, scale), ComposeTRS(gotPos, gotRot, gotScale))
}

func TestQuatFromMat4(t *testing.T) {
	for _, angle := range []float32{0, 0.5, 2.5, math32.Pi - 0.01} {
		q := QuatFromAxisAngle(V3(0.3, -1, 0.2), angle)
		got := QuatFromMat4(q.Mat4())
		assertMatNear(t, q.Mat4(), got.Mat4())
	}
}

func TestQuatMulComposesRotations(t *testing.T) {
	a := QuatFromAxisAngle(Vec3Up, math32.Pi/4)
	combined := a.Mul(a)
	assertVecNear(t, V3(0, 0, -1), combined.Rotate(V3(1, 0, 0)))
}

func TestLookAt(t *testing.T) {
	view := LookAt(V3(0, 0, 5), Vec3Zero, Vec3Up)
	assertVecNear(t, V3(0, 0, -5), view.MulPoint(Vec3Zero))
}

func TestPerspectiveDepthRange(t *testing.T) {
	near, far := float32(0.1), float32(100)
	proj := Perspective(DegToRad(60), 1, near, far)

	assert.InDelta(t, 0, proj.MulPoint(V3(0, 0, -near))[2], 1e-5)
	assert.InDelta(t, 1, proj.MulPoint(V3(0, 0, -far))[2], 1e-4)
}

func TestOrthographicDepthRange(t *testing.T) {
	proj := Orthographic(-1, 1, -1, 1, 1, 10)
	assert.InDelta(t, 0, proj.MulPoint(V3(0, 0, -1))[2], 1e-5)
	assert.InDelta(t, 1, proj.MulPoint(V3(0, 0, -10))[2], 1e-5)
	assertVecNear(t, V3(1, 1, 0), proj.MulPoint(V3(1, 1, -1)))
}

func TestColorBytes(t *testing.T) {
	assert.Equal(t, [4]byte{0, 255, 255, 255}, ColorCyan.Bytes())
	assert.Equal(t, [4]byte{255, 0, 0, 255}, Color{2, -1, 0, 1}.Bytes())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 8, Clamp(12, 0, 8))
	assert.Equal(t, 0, Clamp(-1, 0, 8))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
}

func TestQuatFromTo(t *testing.T) {
	for _, tc := range []struct {
		name     string
		from, to Vec3
	}{
		{"same", Vec3Up, Vec3Up},
		{"perpendicular", Vec3Up, Vec3{1, 0, 0}},
		{"opposite", Vec3Up, Vec3{0, -1, 0}},
		{"opposite on x", Vec3{1, 0, 0}, Vec3{-1, 0, 0}},
		{"unnormalized", Vec3{0, 0, 3}, Vec3{0, 2, 2}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := QuatFromTo(tc.from, tc.to).Rotate(tc.from.Normalize())
			assertVecNear(t, tc.to.Normalize(), got)
		})
	}
}

func TestMovementKey(t *testing.T) {
	axis, sign, ok := MovementKey(KeyUp)
	assert.True(t, ok)
	assert.Equal(t, AxisForward, axis)
	assert.Equal(t, float32(1), sign)

	axis, sign, ok = MovementKey(KeyA)
	assert.True(t, ok)
	assert.Equal(t, AxisRight, axis)
	assert.Equal(t, float32(-1), sign)

	_, _, ok = MovementKey(32)
	assert.False(t, ok)
}
