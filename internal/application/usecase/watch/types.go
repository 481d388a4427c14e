package watch

import "coinwatch/internal/application/port"

type Repository = port.Repository

type StreamFeed = port.StreamFeed
