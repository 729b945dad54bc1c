package handlers

// JobResponse exposes the unexported jobResponse type to the external
// handlers_test package.
type JobResponse = jobResponse
