// Package model defines the external Model capability: the minimal contract
// the orchestrator needs to drive generation, plus a scripted MockModel for
// tests and examples. Provider adapters live in subpackages (openai,
// anthropic) and translate the normalized request into vendor wire formats.
package model
