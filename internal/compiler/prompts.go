package compiler

// Pipeline instruction headers keyed by action. pipelinePrompt joins each one
// with the task block and, after the first step, the previous step's output
// block via joinSections.
const (
	analyzeTemplate = `Analyze the following task. Identify the requirements, constraints,
edge cases and open questions before any work starts.`

	codeTemplate = `Write the code that accomplishes the following task. Return complete,
working code and briefly note any assumptions.`

	reviewTemplate = `Review the work below. List concrete defects, risks and missing pieces,
ordered by severity. Say explicitly if nothing needs to change.`

	fixTemplate = `Fix the problems described below. Return the corrected result in full,
not a diff.`

	testTemplate = `Write tests for the work below. Cover the main behavior and the edge
cases, and explain how to run them.`

	summarizeTemplate = `Summarize the work below for a reader who has not seen it. Keep the
decisions and the open items.`

	respondTemplate = `Complete the following task.`
)

const (
	taskBlock     = "Task:\n{{prompt}}"
	previousBlock = "Previous step output:\n"
)

const pickInstructions = `Several agents answered the same task independently. Choose the best
response. On the first line write the name of the agent you picked, then give
the chosen response in full, improved where you can.`

const proposeInstructions = `Propose an approach for the following task. Describe the design, the
main steps and the risks. Do not implement it yet.`

const pickProposalInstructions = `Several agents proposed approaches to the same task. Pick the strongest
proposal, merging in good ideas from the others where they fit. Return the
final plan only.`

const buildInstructions = `Implement the task following the selected plan below. Return the
complete result.`

const aggregateInstructions = `Several agents answered the same task independently. Synthesize a
single answer: keep what they agree on, resolve disagreements with reasoning,
and drop anything unsupported.`

const reviseInstructions = `You answered the task below before. Here are the answers from every
agent in the previous round. Revise your answer, taking the strongest points
from the others and correcting your own mistakes.`

const decomposeInstructions = `Split the following task into %d independent pieces that can be solved
separately and later assembled. Number them 1 to %d. For each piece give a
short title, what it must produce, and how it connects to the others.`

const solveInstructions = `The task below has been split into %d pieces. Solve piece %d only.
Return a result that can be assembled with the other pieces.`

const assembleInstructions = `The task below was split into pieces and each was solved separately.
Assemble the pieces into one coherent result, resolving any seams or
conflicts between them.`

const verifyInstructions = `Verify the assembled result below against the task. List every
defect, gap or inconsistency. Say explicitly if it is correct.`

const refineFromVerifyInstructions = `Improve the assembled result below using the verification notes.
Return the complete improved result.`

const refineInstructions = `Improve your previous answer using the feedback below. Return the
complete improved answer.`

const feedbackInstructions = `Critique the answer below. Point out errors, omissions and unclear
parts, and suggest specific improvements.`

const supervisePlanInstructions = `You are supervising another agent on the task below. Write a short
implementation plan it can follow, with acceptance criteria.`

const superviseImplementInstructions = `Implement the task below following the supervisor's plan.`

const superviseReviewInstructions = `Review the implementation below against the plan and the task. List
required changes; say explicitly if it is acceptable as is.`

const superviseFinalizeInstructions = `Apply the review to your implementation and return the final result.`
