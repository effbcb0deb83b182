package internal

type StageKind string

const (
	StageKindIngress StageKind = "ingress"
	StageKindHandler StageKind = "handler"
	StageKindEgress  StageKind = "egress"
	StageKindCLI     StageKind = "cli"
)
