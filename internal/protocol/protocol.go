package protocol

const Version = "1.0"

// Websocket endpoints.
const (
	AdapterPath = "/v1/adapter"
	ScenePath   = "/v1/scene"
	CoSimPath   = "/v1/cosim"
)

// Adapter methods.
const (
	AdapterCreateSession          = "adapter.CreateSession"
	AdapterCloseSession           = "adapter.CloseSession"
	AdapterInitialize             = "adapter.Initialize"
	AdapterAssignInstruction      = "adapter.AssignInstruction"
	AdapterCheckPrerequisites     = "adapter.CheckPrerequisites"
	AdapterDoStep                 = "adapter.DoStep"
	AdapterCreateCheckpoint       = "adapter.CreateCheckpoint"
	AdapterRestoreCheckpoint      = "adapter.RestoreCheckpoint"
	AdapterAbort                  = "adapter.Abort"
	AdapterDispose                = "adapter.Dispose"
	AdapterGetLoadableMMUs        = "adapter.GetLoadableMMUs"
	AdapterGetMMus                = "adapter.GetMMus"
	AdapterGetDescription         = "adapter.GetDescription"
	AdapterGetBoundaryConstraints = "adapter.GetBoundaryConstraints"
	AdapterLoadMMUs               = "adapter.LoadMMUs"
	AdapterExecuteFunction        = "adapter.ExecuteFunction"
	AdapterGetStatus              = "adapter.GetStatus"
	AdapterPushScene              = "adapter.PushScene"
	AdapterGetScene               = "adapter.GetScene"
)

// Scene methods.
const (
	SceneGetSceneChanges         = "scene.GetSceneChanges"
	SceneClearChanges            = "scene.ClearChanges"
	SceneGetFullScene            = "scene.GetFullScene"
	SceneGetSceneUpdate          = "scene.GetSceneUpdate"
	SceneApplyUpdates            = "scene.ApplyUpdates"
	SceneApplyManipulations      = "scene.ApplyManipulations"
	SceneGetSceneObjects         = "scene.GetSceneObjects"
	SceneGetSceneObjectByID      = "scene.GetSceneObjectByID"
	SceneGetSceneObjectsByName   = "scene.GetSceneObjectsByName"
	SceneGetSceneObjectsInRange  = "scene.GetSceneObjectsInRange"
	SceneGetAvatars              = "scene.GetAvatars"
	SceneGetAvatarByID           = "scene.GetAvatarByID"
	SceneGetAvatarsByName        = "scene.GetAvatarsByName"
	SceneGetAvatarsInRange       = "scene.GetAvatarsInRange"
	SceneGetColliders            = "scene.GetColliders"
	SceneGetColliderByID         = "scene.GetColliderByID"
	SceneGetMeshes               = "scene.GetMeshes"
	SceneGetMeshByID             = "scene.GetMeshByID"
	SceneGetTransforms           = "scene.GetTransforms"
	SceneGetTransformByID        = "scene.GetTransformByID"
	SceneGetAttachments          = "scene.GetAttachments"
	SceneGetAttachmentsRecursive = "scene.GetAttachmentsRecursive"
	SceneGetSimulationTime       = "scene.GetSimulationTime"
)

// Control methods served by the co-simulation server.
const (
	CoSimAssignInstruction = "cosim.AssignInstruction"
	CoSimAbort             = "cosim.Abort"
	CoSimGetTasks          = "cosim.GetTasks"
	CoSimGetPriorities     = "cosim.GetPriorities"
	CoSimSetPriority       = "cosim.SetPriority"
	CoSimSaveRecord        = "cosim.SaveRecord"
)
