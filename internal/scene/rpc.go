package scene

import (
	"context"
	"encoding/json"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/protocol"
	"mosim.ai/internal/transport/rpc"
)

type idParams struct {
	ID string `json:"id"`
}

type nameParams struct {
	Name string `json:"name"`
}

type rangeParams struct {
	Position mmi.Vector3 `json:"position"`
	Radius   float64     `json:"radius"`
}

type frameParams struct {
	FrameID uint64 `json:"frame_id"`
}

type updateParams struct {
	Update mmi.SceneUpdate `json:"update"`
}

type manipulationParams struct {
	Manipulations []mmi.SceneManipulation `json:"manipulations"`
}

// lookup is the wire form of a (value, found) pair.
type lookup[T any] struct {
	Found bool `json:"found"`
	Value *T   `json:"value,omitempty"`
}

func found[T any](v T, ok bool) lookup[T] {
	if !ok {
		return lookup[T]{}
	}
	return lookup[T]{Found: true, Value: &v}
}

func handle[P any](srv *rpc.Server, method string, fn func(p P) any) {
	srv.Handle(method, func(_ context.Context, raw json.RawMessage) (any, error) {
		var p P
		if err := rpc.Bind(raw, &p); err != nil {
			return nil, err
		}
		return fn(p), nil
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// RegisterRPC exposes s on srv as the scene.* methods.
func RegisterRPC(srv *rpc.Server, s *Store) {
	handle(srv, protocol.SceneGetSceneChanges, func(struct{}) any { return s.GetSceneChanges() })
	handle(srv, protocol.SceneClearChanges, func(struct{}) any {
		s.ClearChanges()
		return mmi.OK()
	})
	handle(srv, protocol.SceneGetFullScene, func(struct{}) any { return s.GetFullScene() })
	handle(srv, protocol.SceneGetSceneUpdate, func(p frameParams) any {
		v, ok := s.GetSceneUpdate(p.FrameID)
		return found(v, ok)
	})
	handle(srv, protocol.SceneApplyUpdates, func(p updateParams) any { return s.ApplyUpdates(p.Update) })
	handle(srv, protocol.SceneApplyManipulations, func(p manipulationParams) any {
		return s.ApplyManipulations(p.Manipulations)
	})

	handle(srv, protocol.SceneGetSceneObjects, func(struct{}) any { return nonNil(s.GetSceneObjects()) })
	handle(srv, protocol.SceneGetSceneObjectByID, func(p idParams) any {
		v, ok := s.GetSceneObjectByID(p.ID)
		return found(v, ok)
	})
	handle(srv, protocol.SceneGetSceneObjectsByName, func(p nameParams) any {
		return nonNil(s.GetSceneObjectsByName(p.Name))
	})
	handle(srv, protocol.SceneGetSceneObjectsInRange, func(p rangeParams) any {
		return nonNil(s.GetSceneObjectsInRange(p.Position, p.Radius))
	})
	handle(srv, protocol.SceneGetAvatars, func(struct{}) any { return nonNil(s.GetAvatars()) })
	handle(srv, protocol.SceneGetAvatarByID, func(p idParams) any {
		v, ok := s.GetAvatarByID(p.ID)
		return found(v, ok)
	})
	handle(srv, protocol.SceneGetAvatarsByName, func(p nameParams) any { return nonNil(s.GetAvatarsByName(p.Name)) })
	handle(srv, protocol.SceneGetAvatarsInRange, func(p rangeParams) any {
		return nonNil(s.GetAvatarsInRange(p.Position, p.Radius))
	})

	handle(srv, protocol.SceneGetColliders, func(struct{}) any { return nonNil(s.GetColliders()) })
	handle(srv, protocol.SceneGetColliderByID, func(p idParams) any {
		v, ok := s.GetColliderByID(p.ID)
		return found(v, ok)
	})
	handle(srv, protocol.SceneGetMeshes, func(struct{}) any { return nonNil(s.GetMeshes()) })
	handle(srv, protocol.SceneGetMeshByID, func(p idParams) any {
		v, ok := s.GetMeshByID(p.ID)
		return found(v, ok)
	})
	handle(srv, protocol.SceneGetTransforms, func(struct{}) any { return nonNil(s.GetTransforms()) })
	handle(srv, protocol.SceneGetTransformByID, func(p idParams) any {
		v, ok := s.GetTransformByID(p.ID)
		return found(v, ok)
	})
	handle(srv, protocol.SceneGetAttachments, func(p idParams) any { return nonNil(s.GetAttachments(p.ID)) })
	handle(srv, protocol.SceneGetAttachmentsRecursive, func(p idParams) any {
		return nonNil(s.GetAttachmentsRecursive(p.ID))
	})
	handle(srv, protocol.SceneGetSimulationTime, func(struct{}) any { return s.GetSimulationTime() })
}
