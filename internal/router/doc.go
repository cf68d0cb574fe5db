// Package router routes the workspace index contract to the local or cloud
// backend selected by configuration.
//
// A Router serves one workspace. Backends are built lazily, at most once per
// kind, and kept for the life of the router so toggling the cloud flag never
// throws away indexed state. GetStatus is bounded by a timeout and reports a
// default status while a backend is still starting.
//
// A Registry hands out routers by workspace and owns the shared storage
// manager and model manager.
package router
