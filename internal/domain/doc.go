// Package domain holds the value types shared by the giveaway engine, its
// stores, and its adapters.
//
// Types here carry no behaviour beyond small helpers. Durable state lives in
// internal/store, scheduling state lives in internal/engine.
package domain
