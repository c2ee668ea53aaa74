package scene

import (
	"context"
	"io"
	"log"

	"mosim.ai/internal/mmi"
	"mosim.ai/internal/protocol"
	"mosim.ai/internal/transport/rpc"
)

// Client reads and feeds a Store served at protocol.ScenePath.
type Client struct {
	conn *rpc.Client
	log  *log.Logger
}

func DialClient(ctx context.Context, url string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	conn, err := rpc.Dial(ctx, url, logger)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, log: logger}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) GetSceneChanges(ctx context.Context) (mmi.SceneUpdate, error) {
	var u mmi.SceneUpdate
	err := c.conn.Call(ctx, protocol.SceneGetSceneChanges, nil, &u)
	return u, err
}

func (c *Client) GetFullScene(ctx context.Context) (mmi.SceneUpdate, error) {
	var u mmi.SceneUpdate
	err := c.conn.Call(ctx, protocol.SceneGetFullScene, nil, &u)
	return u, err
}

func (c *Client) GetSceneUpdate(ctx context.Context, frameID uint64) (mmi.SceneUpdate, bool, error) {
	var res lookup[mmi.SceneUpdate]
	if err := c.conn.Call(ctx, protocol.SceneGetSceneUpdate, frameParams{FrameID: frameID}, &res); err != nil {
		return mmi.SceneUpdate{}, false, err
	}
	if !res.Found || res.Value == nil {
		return mmi.SceneUpdate{}, false, nil
	}
	return *res.Value, true, nil
}

func (c *Client) ApplyUpdates(ctx context.Context, u mmi.SceneUpdate) (mmi.BoolResponse, error) {
	var res mmi.BoolResponse
	err := c.conn.Call(ctx, protocol.SceneApplyUpdates, updateParams{Update: u}, &res)
	return res, err
}

// PushScene lets a remote store stand in for a local publisher target.
func (c *Client) PushScene(ctx context.Context, u mmi.SceneUpdate) bool {
	res, err := c.ApplyUpdates(ctx, u)
	if err != nil {
		c.log.Printf("scene push: %v", err)
		return false
	}
	return res.Successful
}

func (c *Client) GetSceneObjectByID(ctx context.Context, id string) (mmi.SceneObject, bool, error) {
	var res lookup[mmi.SceneObject]
	if err := c.conn.Call(ctx, protocol.SceneGetSceneObjectByID, idParams{ID: id}, &res); err != nil {
		return mmi.SceneObject{}, false, err
	}
	if !res.Found || res.Value == nil {
		return mmi.SceneObject{}, false, nil
	}
	return *res.Value, true, nil
}

func (c *Client) GetAvatarByID(ctx context.Context, id string) (mmi.Avatar, bool, error) {
	var res lookup[mmi.Avatar]
	if err := c.conn.Call(ctx, protocol.SceneGetAvatarByID, idParams{ID: id}, &res); err != nil {
		return mmi.Avatar{}, false, err
	}
	if !res.Found || res.Value == nil {
		return mmi.Avatar{}, false, nil
	}
	return *res.Value, true, nil
}

func (c *Client) GetSceneObjectsInRange(ctx context.Context, pos mmi.Vector3, radius float64) ([]mmi.SceneObject, error) {
	var out []mmi.SceneObject
	err := c.conn.Call(ctx, protocol.SceneGetSceneObjectsInRange, rangeParams{Position: pos, Radius: radius}, &out)
	return out, err
}

func (c *Client) GetSimulationTime(ctx context.Context) (float64, error) {
	var t float64
	err := c.conn.Call(ctx, protocol.SceneGetSimulationTime, nil, &t)
	return t, err
}
