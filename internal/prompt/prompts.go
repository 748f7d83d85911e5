package prompt

// Prompt keys consumed by the pipeline stages.
const (
	KeyClaimExtract      = "claim_extract"
	KeyClaimValidate     = "claim_validate"
	KeyEvidenceExtract   = "evidence_extract"
	KeyReliabilityScore  = "reliability_score"
	KeyBoundaryCluster   = "boundary_cluster"
	KeyDebateAdvocate    = "debate_advocate"
	KeyDebateChallenge   = "debate_challenge"
	KeyDebateReconcile   = "debate_reconcile"
	KeyValidateGrounding = "validate_grounding"
	KeyValidateDirection = "validate_direction"
	KeyNarrative         = "narrative"
)

const jsonOnly = "Respond with a single JSON document and nothing else. No markdown fences, no prose."

func init() {
	register(KeyClaimExtract,
		"You decompose input text into atomic, independently verifiable claims. "+jsonOnly,
		`Decompose the following input into atomic claims. For each claim assign
centrality (high/medium/low: how central it is to the input's main point),
harm_potential (high/medium/low: potential for real-world harm if the claim is
wrong), and expected_evidence_profile (one sentence on what evidence would
settle it).

Input:
{{.input}}

Return: {"main_claim": string, "claims": [{"statement": string,
"centrality": string, "harm_potential": string,
"expected_evidence_profile": string}]}`)

	register(KeyClaimValidate,
		"You filter claim candidates, keeping only substantive verifiable assertions. "+jsonOnly,
		`Review these claim candidates. Drop candidates that are trivial, purely
subjective, or duplicates of another candidate. Keep the rest unchanged.

Candidates:
{{json .claims}}

Return: {"keep": [int]} listing the zero-based indexes to keep.`)

	register(KeyEvidenceExtract,
		"You extract evidence bearing on specific claims from a web page. "+jsonOnly,
		`Extract evidence from this source that bears on any of the claims below.
For each evidence item state what the source asserts, which claim ids it is
relevant to, whether it supports/contradicts/neutral those claims, its
probative value (high/medium/low), whether the source merely restates another
source (derivative), and the evidence scope: the methodology the source used
to produce the evidence (required), plus temporal, geographic, and source_type
context where stated.

Claims:
{{json .claims}}

Source URL: {{.url}}
Source text:
{{.text}}

Return: {"evidence": [{"statement": string, "relevant_claim_ids": [string],
"claim_direction": string, "probative_value": string, "derivative": bool,
"evidence_scope": {"methodology": string, "temporal": string,
"geographic": string, "source_type": string}}]}`)

	register(KeyReliabilityScore,
		"You score the reliability of web sources by URL. "+jsonOnly,
		`Score each source URL for reliability from 0.0 (unreliable) to 1.0
(highly reliable), based on the publishing domain's editorial standards and
track record.

URLs:
{{json .urls}}

Return: {"scores": {"<url>": number}}`)

	register(KeyBoundaryCluster,
		"You cluster evidence scopes into internally consistent assessment boundaries. "+jsonOnly,
		`Cluster these evidence scopes into assessment boundaries. A boundary
groups scopes that share a congruent methodology, jurisdiction, or time frame
and can be analyzed together without blending incompatible framings. Every
boundary gets a short name, a description, a scope summary, and an
internal_coherence score from 0.0 to 1.0.

Scopes:
{{json .scopes}}

Return: {"boundaries": [{"name": string, "description": string,
"scope_summary": string, "internal_coherence": number,
"evidence_scope_ids": [string]}]}`)

	register(KeyDebateAdvocate,
		"You are an evidence advocate producing calibrated truth verdicts. "+jsonOnly,
		`For each claim, reason through the evidence boundary by boundary, then
synthesize one calibrated verdict. truth_percentage is 0-100 (100 = certainly
true), confidence is 0-100 (how settled the evidence is). Cite the evidence
ids you relied on and give a per-boundary direction.

Claims:
{{json .claims}}

Evidence:
{{json .evidence}}

Boundaries:
{{json .boundaries}}

Coverage (evidence-direction counts per claim per boundary):
{{json .coverage}}

Return: {"verdicts": [{"claim_id": string, "truth_percentage": number,
"confidence": number, "rating": string, "reasoning": string,
"cited_evidence_ids": [string], "boundary_findings": [{"boundary_id": string,
"direction": string, "summary": string}]}]}`)

	register(KeyDebateChallenge,
		"You are an adversarial reviewer attacking draft verdicts. "+jsonOnly,
		`Attack these draft verdicts. For each claim, find the strongest reading
of the contradicting evidence, overlooked weaknesses in the cited sources, and
alternative explanations. Then state your own truth_percentage and the
specific objections the reconciler must answer.

Claims:
{{json .claims}}

Draft verdicts:
{{json .verdicts}}

Evidence:
{{json .evidence}}

Return: {"challenges": [{"claim_id": string, "truth_percentage": number,
"objections": [string]}]}`)

	register(KeyDebateReconcile,
		"You reconcile an advocate's verdicts with an adversarial challenge. "+jsonOnly,
		`Reconcile the advocate's verdicts with the challenger's objections.
Where an objection survives scrutiny, move the verdict toward the challenger;
where it does not, say why and keep the advocate's number. Keep citations to
real evidence ids only.

Claims:
{{json .claims}}

Advocate verdicts:
{{json .verdicts}}

Challenges:
{{json .challenges}}
{{if .consistency}}
Self-consistency spreads (wider spread = less stable draft):
{{json .consistency}}
{{end}}
Return: {"verdicts": [{"claim_id": string, "truth_percentage": number,
"confidence": number, "rating": string, "reasoning": string,
"cited_evidence_ids": [string], "boundary_findings": [{"boundary_id": string,
"direction": string, "summary": string}]}]}`)

	register(KeyValidateGrounding,
		"You check that verdicts cite evidence that exists and is relevant. "+jsonOnly,
		`For each verdict, check grounding: every cited evidence id must exist in
the evidence list and be relevant to the claim. Report verdicts whose cited
evidence is missing, irrelevant, or insufficient for the stated
truth_percentage, and optionally suggest a corrected percentage.

Verdicts:
{{json .verdicts}}

Evidence:
{{json .evidence}}

Return: {"issues": [{"claim_id": string, "problem": string,
"correction": "upgrade"|"downgrade"|"none", "suggested_pct": number|null}]}`)

	register(KeyValidateDirection,
		"You check that verdict direction agrees with the cited evidence. "+jsonOnly,
		`For each verdict, check direction: does the truth_percentage agree with
the support/contradict direction of the cited evidence? A verdict above 50
resting mostly on contradicting evidence, or below 50 resting mostly on
supporting evidence, is a direction mismatch. Optionally suggest a corrected
percentage.

Verdicts:
{{json .verdicts}}

Evidence:
{{json .evidence}}

Return: {"issues": [{"claim_id": string, "problem": string,
"correction": "upgrade"|"downgrade"|"none", "suggested_pct": number|null}]}`)

	register(KeyNarrative,
		"You write the closing narrative of a claim-verification report. "+jsonOnly,
		`Write the narrative for this verification run: a short summary of the
overall verdict, the key evidence behind it, the limitations of the analysis,
and one paragraph on methodology.

Overall verdict: {{.verdict}} (truth {{.truth}}%, confidence {{.confidence}}%)

Top claims by weight:
{{json .claims}}

Boundaries:
{{json .boundaries}}

Coverage summary:
{{json .coverage}}

Return: {"summary": string, "key_evidence": [string],
"limitations": [string], "methodology": string}`)
}
