/*
Package config loads streakline settings.

Sources, later ones winning:

 1. Default()
 2. a YAML file (streakline --config streakline.yaml)
 3. STREAKLINE_* environment variables, optionally seeded from a .env file

Example file:

	dataDir: /var/lib/streakline
	timezone: America/Bogota
	api:
	  addr: 0.0.0.0:8080
	  rateLimit: 20
	  rateBurst: 40
	log:
	  level: info
	  json: true
	  file: /var/log/streakline/streakline.log
	enrollment:
	  pollAttempts: 10
	  pollInterval: 200ms
	  visibilityDelay: 0s
	  defaultTime: "09:00"
	reconcile:
	  interval: 30s
*/
package config
