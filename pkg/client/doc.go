/*
Package client is a Go client for the streakline HTTP API.

It mirrors the routes served by pkg/api and decodes responses into the
engine's own types, so callers work with enrollment.Result, progress.Standing
and types.ParticipantSummary exactly as the in-process packages return them.

	c, err := client.NewClient("127.0.0.1:8080")
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.Enroll(ctx, "reset-21", "u1", enrollment.Choices{
		SelectedActivityIDs: []string{"run", "read"},
		Links:               []enrollment.LinkChoice{{ActivityID: "run", HabitID: "h1"}},
	})

Non-2xx responses are returned as *APIError. A failed enrollment still
returns its Result alongside the error so the caller can see which state it
stopped in. A 404 matches ErrNotFound with errors.Is.
*/
package client
