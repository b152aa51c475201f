package service

// RunningGuard exposes the unexported guard to the external test package.
type RunningGuard = runningJobsGuard
