package config

// Example is a complete two-line configuration. `ctc config init` writes it
// as a starting point; tests across the repo build on it.
const Example = `controller:
  tick_interval: 1s
  step: 1s
  speed: 1
  start_time: 2026-01-05T05:59:00Z
  auto_start: true
  lookahead_blocks: 8
  service_brake: 1.2
  max_train_speed: 19.44
  queue_capacity: 1024
  snapshot_every: 30

database:
  driver: sqlite
  path: ctc.db

http:
  port: 8080

# Post fail-safe holds, stale links and cancelled departures to chat.
# alerts:
#   platform: slack        # or discord
#   channel: C0123456789
#   cooldown: 1m
#   pulse: 30m
#   # token is read from CTC_ALERT_TOKEN when omitted

collaborators:
  - name: wayside-green
    kind: wayside
    max_staleness: 5s
  - name: train-link
    kind: train
    max_staleness: 5s

lines:
  - name: Green
    yard: 1
    speed_limit: 19.44
    signals: [4, 5]
    blocks:
      - {section: A, number: 1, length: 100, next: [2]}
      - {section: A, number: 2, length: 100, next: [3]}
      - {section: A, number: 3, length: 100, speed_limit: 12, next: [4]}
      - {section: A, number: 4, length: 150, station: Pioneer, next: [5]}
      - {section: B, number: 5, length: 100, next: [6, 12]}
      - {section: B, number: 6, length: 200, next: [7]}
      - {section: B, number: 7, length: 200, station: Edgebrook}
      - {section: C, number: 12, length: 150, next: [13]}
      - {section: C, number: 13, length: 150, station: Whited}
    switches:
      - {section: B, number: 1, block: 5, normal: 6, reverse: 12}
    gates:
      - {section: B, number: 1, block: 6}

  - name: Red
    yard: 1
    speed_limit: 15
    signals: [3]
    blocks:
      - {section: A, number: 1, length: 100, next: [2]}
      - {section: A, number: 2, length: 100, next: [3]}
      - {section: A, number: 3, length: 120, next: [4]}
      - {section: A, number: 4, length: 150, station: Shadyside, next: [5]}
      - {section: A, number: 5, length: 150, station: Herron}

schedule:
  - id: 12
    line: Red
    destination: Herron
    departure: 2026-01-05T06:00:00Z
    arrival: 2026-01-05T06:10:00Z
  - id: 13
    line: Green
    destination: Edgebrook
    departure: 2026-01-05T06:05:00Z
    arrival: 2026-01-05T06:15:00Z

services:
  - name: green-whited
    line: Green
    destination: Whited
    cron: "*/30 6-7 * * *"
    run_time: 12m
    first_id: 100
`
