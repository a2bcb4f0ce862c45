package progress

import "strings"

// TableVersion identifies the anchor table revision. Bump when the upstream
// pipeline's log format changes.
const TableVersion = 1

// Stage is the normalized key of a recognized pipeline phase.
type Stage string

const (
	StagePipelineStart       Stage = "pipeline_start"
	StageAudioSeparation     Stage = "audio_separation"
	StageAudioProcessing     Stage = "audio_processing"
	StageTranscription       Stage = "transcription"
	StageDiarization         Stage = "diarization"
	StageAudioSeparationDone Stage = "audio_separation_done"
	StageTranslation         Stage = "translation"
	StageTranslating         Stage = "translating"
	StageTranslationDone     Stage = "translation_done"
	StageTTSSynthesis        Stage = "tts_synthesis"
	StageTTSProcessing       Stage = "tts_processing"
	StageTTSGenerating       Stage = "tts_generating"
	StageTTSDone             Stage = "tts_done"
	StageMergingStart        Stage = "merging_start"
	StageMerging             Stage = "merging"
	StageMergingDone         Stage = "merging_done"
	StageFinalVideo          Stage = "final_video"
	StageCompleted           Stage = "completed"
)

var stageLabels = map[Stage]string{
	StagePipelineStart:       "Starting pipeline",
	StageAudioSeparation:     "Separating audio",
	StageAudioProcessing:     "Processing audio",
	StageTranscription:       "Transcribing",
	StageDiarization:         "Identifying speakers",
	StageAudioSeparationDone: "Audio processing complete",
	StageTranslation:         "Translating subtitles",
	StageTranslating:         "Translating",
	StageTranslationDone:     "Translation complete",
	StageTTSSynthesis:        "Synthesizing speech",
	StageTTSProcessing:       "Synthesizing speech",
	StageTTSGenerating:       "Generating dub audio",
	StageTTSDone:             "Speech synthesis complete",
	StageMergingStart:        "Merging audio and video",
	StageMerging:             "Merging audio and video",
	StageMergingDone:         "Merge complete",
	StageFinalVideo:          "Writing final video",
	StageCompleted:           "Pipeline complete",
}

// Label returns the human-readable stage name used in status output.
func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

// Update is one classified progress observation.
type Update struct {
	Stage   Stage
	Percent int
}

// Label is shorthand for the stage's display label.
func (u Update) Label() string { return u.Stage.Label() }

// needle is one substring matcher. fold selects case-insensitive matching,
// used where the runner's casing varies; exact-case needles keep markers
// like "TTS" from matching ordinary words.
type needle struct {
	text string
	fold bool
}

func exact(text string) needle  { return needle{text: text} }
func folded(text string) needle { return needle{text: text, fold: true} }

type anchor struct {
	stage   Stage
	percent int
}

// refinement narrows a matched entry by a second needle set.
type refinement struct {
	match []needle
	anchor
}

// entry is one priority-ordered row of the table. When match hits and the
// entry carries refinements, one of them must also hit (or the fallback
// apply) for the line to classify; otherwise the whole chain stops, exactly
// like the upstream parser's guarded step markers.
type entry struct {
	match    []needle
	refine   []refinement
	fallback *anchor
	anchor   anchor
}

// table mirrors the reference pipeline's log vocabulary: the runner emits
// bilingual step markers ("[Step 1]", "翻译字幕", "generating audio", ...)
// and each maps to a fixed anchor percent in stage order.
var table = []entry{
	{match: []needle{exact("开始全自动视频翻译流水线")}, anchor: anchor{StagePipelineStart, 5}},
	{
		match: []needle{exact("[Step 1]")},
		refine: []refinement{
			{match: []needle{exact("音视频处理和转录")}, anchor: anchor{StageAudioSeparation, 10}},
			{match: []needle{exact("完成")}, anchor: anchor{StageAudioSeparationDone, 35}},
		},
	},
	{match: []needle{folded("stepa"), exact("分离音频")}, anchor: anchor{StageAudioProcessing, 15}},
	{match: []needle{folded("whisperx"), exact("转录")}, anchor: anchor{StageTranscription, 20}},
	{match: []needle{exact("说话人识别"), folded("diarization")}, anchor: anchor{StageDiarization, 25}},
	{
		match: []needle{exact("[Step 2]")},
		refine: []refinement{
			{match: []needle{exact("翻译字幕")}, anchor: anchor{StageTranslation, 40}},
			{match: []needle{exact("完成")}, anchor: anchor{StageTranslationDone, 55}},
		},
	},
	{match: []needle{folded("step4_translate"), exact("翻译中")}, anchor: anchor{StageTranslating, 45}},
	{
		match: []needle{exact("[Step 3]")},
		refine: []refinement{
			{match: []needle{exact("IndexTTS"), exact("GPT-SoVITS")}, anchor: anchor{StageTTSSynthesis, 60}},
			{match: []needle{exact("完成")}, anchor: anchor{StageTTSDone, 85}},
		},
	},
	{match: []needle{folded("stepb"), exact("TTS")}, anchor: anchor{StageTTSProcessing, 65}},
	{match: []needle{exact("生成TTS音频"), folded("generating audio")}, anchor: anchor{StageTTSGenerating, 75}},
	{
		match: []needle{folded("merge"), exact("合并")},
		refine: []refinement{
			{match: []needle{exact("开始"), folded("start")}, anchor: anchor{StageMergingStart, 88}},
			{match: []needle{exact("完成"), folded("done")}, anchor: anchor{StageMergingDone, 95}},
		},
		fallback: &anchor{StageMerging, 90},
	},
	{match: []needle{exact("流水线执行完成"), exact("所有步骤已完成")}, anchor: anchor{StageCompleted, 98}},
	{match: []needle{exact("最终视频"), folded("final video")}, anchor: anchor{StageFinalVideo, 96}},
}

// Classify maps one line of runner output to a progress observation.
// Unknown lines return ok=false and must not affect job state.
func Classify(line string) (Update, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Update{}, false
	}
	lower := strings.ToLower(line)

	for _, e := range table {
		if !matchAny(line, lower, e.match) {
			continue
		}
		if len(e.refine) == 0 {
			return Update{Stage: e.anchor.stage, Percent: e.anchor.percent}, true
		}
		for _, ref := range e.refine {
			if matchAny(line, lower, ref.match) {
				return Update{Stage: ref.stage, Percent: ref.percent}, true
			}
		}
		if e.fallback != nil {
			return Update{Stage: e.fallback.stage, Percent: e.fallback.percent}, true
		}
		// A guarded step marker without a recognized refinement consumes
		// the line: later, looser entries must not see it.
		return Update{}, false
	}
	return Update{}, false
}

func matchAny(line, lower string, needles []needle) bool {
	for _, n := range needles {
		if n.fold {
			if strings.Contains(lower, strings.ToLower(n.text)) {
				return true
			}
			continue
		}
		if strings.Contains(line, n.text) {
			return true
		}
	}
	return false
}
