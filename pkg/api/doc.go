/*
Package api serves the engine over HTTP/JSON.

The server is a gorilla/mux router in front of the enrollment coordinator, the
completion recorder and the progress service. It holds no state of its own
beyond the per-client rate limiters; every request is answered from the
gateway.

# Routes

	POST /v1/challenges/{challengeID}/enrollments
	POST /v1/challenges/{challengeID}/enrollments/actions:retry
	GET  /v1/challenges/{challengeID}/participants/{userID}
	GET  /v1/challenges/{challengeID}/standings?user={userID}
	GET  /v1/challenges/{challengeID}/leaderboard
	POST /v1/participants/{participantID}/completions

	GET  /health   process health (metrics.HealthHandler)
	GET  /ready    storage and api registered and healthy
	GET  /livez    always 200 while the process runs
	GET  /metrics  Prometheus exposition

# Enrollment status codes

An enrollment request carries the join flow's answers:

	{
	  "user_id": "u1",
	  "selected_activity_ids": ["a1", "a2", "a3"],
	  "links": [{"activity_id": "a1", "habit_id": "h1"}],
	  "suggest_links": false,
	  "times": {"a2": "08:00", "a3": "12:30 PM"}
	}

The reply body is the enrollment result in every case the coordinator ran:

	201  committed, every calendar action created
	207  committed, some calendar actions missing (retry with actions:retry)
	404  unknown challenge, or no participant on retry
	409  an enrollment for the same user is in flight, or a read-back diverged
	422  the plan failed validation; nothing was written
	502  the store rejected a write
	504  the participant never became visible within the poll budget

Completions answer 201 when recorded and 200 when the same activity was
already recorded for that day.

# Rate limiting

Requests under /v1 are limited per client IP with a token bucket from
golang.org/x/time/rate. The client IP is the first X-Forwarded-For entry,
then X-Real-IP, then the connection address. Health and metrics routes are
never limited.
*/
package api
