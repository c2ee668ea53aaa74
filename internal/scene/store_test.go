package scene

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mosim.ai/internal/mmi"
)

func newTestStore(t *testing.T) (*Store, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	s := NewStore(Options{Logger: log.New(&buf, "", 0)})
	return s, &buf
}

func object(id, name string, x, y, z float64) mmi.SceneObject {
	return mmi.SceneObject{ID: id, Name: name, Transform: mmi.Transform{Position: mmi.Vector3{X: x, Y: y, Z: z}}}
}

func logLines(buf *bytes.Buffer) []string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestDuplicateAddIsLoggedOnce(t *testing.T) {
	s, buf := newTestStore(t)
	require.True(t, s.AddSceneObject(object("1", "cup", 0, 0, 0)).Successful)

	r := s.AddSceneObject(object("1", "other", 1, 1, 1))
	require.False(t, r.Successful)
	require.Len(t, s.GetSceneObjects(), 1)
	require.Len(t, logLines(buf), 1)
	require.Contains(t, logLines(buf)[0], "Cannot add scene object 1, object is already registered")

	o, ok := s.GetSceneObjectByID("1")
	require.True(t, ok)
	require.Equal(t, "cup", o.Name, "first registration wins")
}

func TestClearChangesEmptiesPendingUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddSceneObject(object("1", "cup", 0, 0, 0))
	s.AddAvatar(mmi.Avatar{ID: "a", Name: "worker"})
	require.False(t, s.GetSceneChanges().Empty())

	// Polling does not clear.
	require.False(t, s.GetSceneChanges().Empty())

	s.ClearChanges()
	require.True(t, s.GetSceneChanges().Empty())
}

func TestChangesCoalescePerObject(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddSceneObject(object("1", "cup", 0, 0, 0))
	s.ClearChanges()

	p1 := mmi.Vector3{X: 1}
	p2 := mmi.Vector3{X: 2}
	rot := mmi.Quaternion{Y: 1}
	require.True(t, s.TransformationChanged("1", mmi.TransformUpdate{Position: &p1}).Successful)
	require.True(t, s.TransformationChanged("1", mmi.TransformUpdate{Rotation: &rot}).Successful)
	require.True(t, s.TransformationChanged("1", mmi.TransformUpdate{Position: &p2}).Successful)
	require.True(t, s.PropertiesChanged("1", map[string]string{"color": "red"}).Successful)

	ch := s.GetSceneChanges()
	require.Len(t, ch.ChangedSceneObjects, 1)
	c := ch.ChangedSceneObjects[0]
	require.Equal(t, p2, *c.Transform.Position, "last write wins")
	require.Equal(t, rot, *c.Transform.Rotation)
	require.Nil(t, c.Transform.Parent)
	require.Equal(t, "red", c.Properties["color"])

	o, _ := s.GetSceneObjectByID("1")
	require.Equal(t, p2, o.Transform.Position)
}

func TestPostureValuesChangedCoalesces(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddAvatar(mmi.Avatar{ID: "a", Name: "worker"})
	s.ClearChanges()

	s.PostureValuesChanged("a", mmi.AvatarPostureValues{AvatarID: "a", PostureData: []float64{1, 2, 3}})
	s.PostureValuesChanged("a", mmi.AvatarPostureValues{AvatarID: "a", PostureData: []float64{4, 5, 6}})

	ch := s.GetSceneChanges()
	require.Len(t, ch.ChangedAvatars, 1)
	require.Equal(t, []float64{4, 5, 6}, ch.ChangedAvatars[0].PostureValues.PostureData)
}

func TestRemoveDropsPendingChange(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddSceneObject(object("1", "cup", 0, 0, 0))
	s.AddSceneObject(object("2", "plate", 0, 0, 0))
	s.ClearChanges()
	s.PropertiesChanged("1", map[string]string{"k": "v"})
	s.PropertiesChanged("2", map[string]string{"k": "v"})

	require.True(t, s.RemoveSceneObject("1").Successful)
	ch := s.GetSceneChanges()
	require.Equal(t, []string{"1"}, ch.RemovedSceneObjects)
	require.Len(t, ch.ChangedSceneObjects, 1)
	require.Equal(t, "2", ch.ChangedSceneObjects[0].ID)

	// The coalescing index must still point at the right entry.
	s.PropertiesChanged("2", map[string]string{"k2": "v2"})
	ch = s.GetSceneChanges()
	require.Len(t, ch.ChangedSceneObjects, 1)
	require.Equal(t, "v2", ch.ChangedSceneObjects[0].Properties["k2"])

	require.Empty(t, s.GetSceneObjectsByName("cup"))
	require.False(t, s.RemoveSceneObject("1").Successful)
}

func TestApplyUpdatesPartialFailure(t *testing.T) {
	s, buf := newTestStore(t)
	s.AddSceneObject(object("1", "cup", 0, 0, 0))
	s.ClearChanges()

	name := "mug"
	pos := mmi.Vector3{Z: 3}
	r := s.ApplyUpdates(mmi.SceneUpdate{
		AddedSceneObjects: []mmi.SceneObject{object("1", "dup", 0, 0, 0), object("2", "plate", 5, 0, 0)},
		ChangedSceneObjects: []mmi.SceneObjectUpdate{
			{ID: "1", Name: &name, Transform: &mmi.TransformUpdate{Position: &pos}},
			{ID: "missing", Name: &name},
		},
		AddedAvatars:   []mmi.Avatar{{ID: "a", Name: "worker"}},
		RemovedAvatars: []string{"a"},
	})
	require.True(t, r.Successful)
	require.Len(t, r.LogData, 2)
	require.Len(t, logLines(buf), 2)

	o, ok := s.GetSceneObjectByID("1")
	require.True(t, ok)
	require.Equal(t, "mug", o.Name)
	require.Equal(t, pos, o.Transform.Position)
	require.Len(t, s.GetSceneObjectsByName("mug"), 1)
	require.Empty(t, s.GetSceneObjectsByName("cup"))

	_, ok = s.GetSceneObjectByID("2")
	require.True(t, ok)
	// Avatars are added before and removed after object changes.
	_, ok = s.GetAvatarByID("a")
	require.False(t, ok)

	require.True(t, s.GetSceneChanges().Empty(), "replicated updates are not re-published")
	require.EqualValues(t, 1, s.FrameID())
}

func TestHistoryIsFIFO(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < 25; i++ {
		s.ApplyUpdates(mmi.SceneUpdate{RemovedSceneObjects: []string{"x"}})
	}
	frames := s.HistoryFrames()
	require.Len(t, frames, DefaultHistorySize)
	require.EqualValues(t, 6, frames[0])
	require.EqualValues(t, 25, frames[len(frames)-1])

	_, ok := s.GetSceneUpdate(5)
	require.False(t, ok, "evicted")
	u, ok := s.GetSceneUpdate(6)
	require.True(t, ok)
	require.Equal(t, []string{"x"}, u.RemovedSceneObjects)
}

func TestHistorySizeConfigurable(t *testing.T) {
	s := NewStore(Options{HistorySize: 3})
	for i := 0; i < 5; i++ {
		s.ApplyUpdates(mmi.SceneUpdate{})
	}
	require.Equal(t, []uint64{3, 4, 5}, s.HistoryFrames())
}

func TestApplyManipulations(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddSceneObject(object("1", "box", 0, 0, 0))
	s.AddSceneObject(object("2", "table", 0, 0, 0))
	s.AddAvatar(mmi.Avatar{ID: "a", Name: "worker"})
	s.ClearChanges()

	pos := mmi.Vector3{X: 1, Y: 2, Z: 3}
	parent := "2"
	r := s.ApplyManipulations([]mmi.SceneManipulation{{
		Transforms: []mmi.TransformManipulation{
			{Target: "1", Position: &pos, Parent: &parent},
			{Target: "ghost", Position: &pos},
		},
		PhysicsInteractions: []mmi.PhysicsInteraction{
			{Target: "1", Type: mmi.PhysicsAddForce, Values: []float64{1, 0, 0}},
			{Target: "1", Type: mmi.PhysicsAddForce, Values: []float64{1, 1, 0}},
			{Target: "1", Type: mmi.PhysicsChangeMass, Values: []float64{4}},
			{Target: "1", Type: mmi.PhysicsChangeVelocity, Values: []float64{1}},
		},
		Properties: []mmi.PropertyManipulation{
			{Target: "a", Key: "carrying", Value: "1"},
			{Target: "nobody", Key: "k", Value: "v"},
		},
	}})
	require.True(t, r.Successful)
	require.Len(t, r.LogData, 3)

	o, _ := s.GetSceneObjectByID("1")
	require.Equal(t, pos, o.Transform.Position)
	require.Equal(t, "2", o.Transform.Parent)
	require.NotNil(t, o.PhysicsProperties)
	require.Equal(t, mmi.Vector3{X: 2, Y: 1}, o.PhysicsProperties.NetForce)
	require.Equal(t, 4.0, o.PhysicsProperties.Mass)

	a, _ := s.GetAvatarByID("a")
	require.Equal(t, "1", a.Properties["carrying"])

	ch := s.GetSceneChanges()
	require.Len(t, ch.ChangedSceneObjects, 1)
	require.Len(t, ch.ChangedAvatars, 1)
}

func TestRangeQueries(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddSceneObject(object("1", "near", 1, 0, 0))
	s.AddSceneObject(object("2", "edge", 0, 2, 0))
	s.AddSceneObject(object("3", "far", 3, 3, 3))
	s.AddAvatar(mmi.Avatar{ID: "a", PostureValues: mmi.AvatarPostureValues{PostureData: []float64{0, 0, 1.5, 1}}})
	s.AddAvatar(mmi.Avatar{ID: "b", PostureValues: mmi.AvatarPostureValues{PostureData: []float64{10, 0, 0}}})
	s.AddAvatar(mmi.Avatar{ID: "c"})

	got := s.GetSceneObjectsInRange(mmi.Vector3{}, 2)
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0].ID)
	require.Equal(t, "2", got[1].ID)

	avs := s.GetAvatarsInRange(mmi.Vector3{}, 2)
	require.Len(t, avs, 1)
	require.Equal(t, "a", avs[0].ID)
}

func TestAttachmentsAndBulkQueries(t *testing.T) {
	s, _ := newTestStore(t)
	root := object("1", "tray", 0, 0, 0)
	root.Attachments = []string{"2"}
	mid := object("2", "cup", 0, 0, 0)
	mid.Attachments = []string{"3", "1"}
	mid.Collider = &mmi.Collider{ID: "2", Type: "box", Size: mmi.Vec3Ptr(mmi.Vector3{X: 1, Y: 1, Z: 1})}
	leaf := object("3", "spoon", 0, 0, 0)
	leaf.Mesh = &mmi.Mesh{ID: "3", Triangles: []int{0, 1, 2}}
	s.AddSceneObject(root)
	s.AddSceneObject(mid)
	s.AddSceneObject(leaf)

	require.Len(t, s.GetAttachments("1"), 1)
	rec := s.GetAttachmentsRecursive("1")
	require.Len(t, rec, 2)
	require.Equal(t, "2", rec[0].ID)
	require.Equal(t, "3", rec[1].ID)

	require.Len(t, s.GetColliders(), 1)
	_, ok := s.GetColliderByID("1")
	require.False(t, ok)
	m, ok := s.GetMeshByID("3")
	require.True(t, ok)
	require.Equal(t, []int{0, 1, 2}, m.Triangles)
	require.Len(t, s.GetTransforms(), 3)
	tr, ok := s.GetTransformByID("2")
	require.True(t, ok)
	require.Equal(t, "2", tr.ID)

	full := s.GetFullScene()
	require.Len(t, full.AddedSceneObjects, 3)
}

func TestReturnedObjectsAreCopies(t *testing.T) {
	s, _ := newTestStore(t)
	o := object("1", "cup", 0, 0, 0)
	o.Properties = map[string]string{"k": "v"}
	s.AddSceneObject(o)
	o.Properties["k"] = "mutated"

	got, _ := s.GetSceneObjectByID("1")
	require.Equal(t, "v", got.Properties["k"])
	got.Properties["k"] = "again"
	again, _ := s.GetSceneObjectByID("1")
	require.Equal(t, "v", again.Properties["k"])
}

func TestPropertyRemovalReplicates(t *testing.T) {
	seed := func(s *Store) {
		o := object("1", "box", 0, 0, 0)
		o.Properties = map[string]string{"color": "red", "size": "L"}
		require.True(t, s.AddSceneObject(o).Successful)
		require.True(t, s.AddAvatar(mmi.Avatar{ID: "a", Name: "worker", Properties: map[string]string{"carrying": "1"}}).Successful)
		s.ClearChanges()
	}
	src, _ := newTestStore(t)
	mirror, _ := newTestStore(t)
	seed(src)
	seed(mirror)

	r := src.ApplyManipulations([]mmi.SceneManipulation{{
		Properties: []mmi.PropertyManipulation{
			{Target: "1", Key: "color", Remove: true},
			{Target: "a", Key: "carrying", Remove: true},
		},
	}})
	require.True(t, r.Successful)
	require.Empty(t, r.LogData)

	ch := src.GetSceneChanges()
	require.Len(t, ch.ChangedSceneObjects, 1)
	require.Equal(t, []string{"color"}, ch.ChangedSceneObjects[0].RemovedProperties)
	require.Equal(t, []string{"carrying"}, ch.ChangedAvatars[0].RemovedProperties)

	require.True(t, mirror.ApplyUpdates(ch).Successful)
	o, _ := mirror.GetSceneObjectByID("1")
	require.Equal(t, map[string]string{"size": "L"}, o.Properties)
	a, _ := mirror.GetAvatarByID("a")
	require.NotContains(t, a.Properties, "carrying")
}

func TestPropertySetAndRemovalCoalesce(t *testing.T) {
	s, _ := newTestStore(t)
	o := object("1", "box", 0, 0, 0)
	o.Properties = map[string]string{"k": "old"}
	s.AddSceneObject(o)
	s.ClearChanges()

	set := func(v string) {
		s.ApplyManipulations([]mmi.SceneManipulation{{Properties: []mmi.PropertyManipulation{{Target: "1", Key: "k", Value: v}}}})
	}
	remove := func() {
		s.ApplyManipulations([]mmi.SceneManipulation{{Properties: []mmi.PropertyManipulation{{Target: "1", Key: "k", Remove: true}}}})
	}

	set("new")
	remove()
	ch := s.GetSceneChanges().ChangedSceneObjects
	require.Len(t, ch, 1)
	require.NotContains(t, ch[0].Properties, "k")
	require.Equal(t, []string{"k"}, ch[0].RemovedProperties)

	mirror, _ := newTestStore(t)
	mirror.AddSceneObject(o)
	mirror.ApplyUpdates(s.GetSceneChanges())
	got, _ := mirror.GetSceneObjectByID("1")
	require.NotContains(t, got.Properties, "k")

	set("again")
	ch = s.GetSceneChanges().ChangedSceneObjects
	require.Equal(t, "again", ch[0].Properties["k"])
	require.Empty(t, ch[0].RemovedProperties)

	mirror.ApplyUpdates(s.GetSceneChanges())
	got, _ = mirror.GetSceneObjectByID("1")
	require.Equal(t, "again", got.Properties["k"])
}

func TestAddedEntryCarriesStoredDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	require.True(t, s.AddSceneObject(object("1", "box", 1, 0, 0)).Successful)

	added := s.GetSceneChanges().AddedSceneObjects
	require.Len(t, added, 1)
	require.Equal(t, "1", added[0].Transform.ID)
	require.Equal(t, mmi.IdentityQuaternion(), added[0].Transform.Rotation)

	stored, _ := s.GetSceneObjectByID("1")
	require.Equal(t, stored, added[0])
}
