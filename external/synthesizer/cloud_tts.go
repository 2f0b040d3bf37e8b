package synthesizer

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"log/slog"

	"cloud.google.com/go/auth/credentials"
	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/foxseedlab/zadankai/internal/conversation"
	"github.com/foxseedlab/zadankai/internal/synthesizer"
	"google.golang.org/api/option"
)

const synthesisSampleRateHertz = 24000

// voiceNames are the standard voices a speaker is deterministically mapped
// onto; the suffix is appended to the request language code.
var voiceNames = []string{"A", "B", "C", "D", "E", "F"}

type CloudTTSConfig struct {
	CredentialsJSON string
	Language        string
}

type CloudTTSSynthesizer struct {
	credentialsJSON string
	defaultLanguage string
}

func NewCloudTTSSynthesizer(cfg CloudTTSConfig) synthesizer.Synthesizer {
	return &CloudTTSSynthesizer{
		credentialsJSON: cfg.CredentialsJSON,
		defaultLanguage: cfg.Language,
	}
}

func (s *CloudTTSSynthesizer) Synthesize(ctx context.Context, req synthesizer.Request) (*synthesizer.Clip, error) {
	language := req.Language
	if language == "" {
		language = s.defaultLanguage
	}
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(s.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	client, err := texttospeech.NewClient(ctx, option.WithAuthCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create texttospeech client: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	voice := voiceForSpeaker(language, req.Speaker)
	clip := &synthesizer.Clip{SampleRate: synthesisSampleRateHertz}
	for _, sentence := range req.Sentences {
		if sentence == "" {
			continue
		}
		resp, err := client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: sentence},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: language,
				Name:         voice,
			},
			AudioConfig: &texttospeechpb.AudioConfig{
				AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
				SampleRateHertz: synthesisSampleRateHertz,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("synthesize sentence: %w", err)
		}
		pcm := pcmSamples(resp.GetAudioContent())
		start := clip.Duration()
		clip.PCM = append(clip.PCM, pcm...)
		clip.Sentences = append(clip.Sentences, conversation.Sentence{
			Text:  sentence,
			Start: start,
			End:   clip.Duration(),
		})
	}
	slog.Debug("synthesized clip",
		"speaker", req.Speaker, "voice", voice,
		"sentences", len(clip.Sentences), "seconds", clip.Duration())
	return clip, nil
}

// voiceForSpeaker keeps one stable voice per speaker name within a meeting.
func voiceForSpeaker(language, speaker string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(speaker))
	suffix := voiceNames[int(h.Sum32())%len(voiceNames)]
	return fmt.Sprintf("%s-Standard-%s", language, suffix)
}

// pcmSamples extracts little-endian int16 samples from LINEAR16 audio
// content. The API returns a WAV container; the data chunk is located by its
// tag rather than assuming a fixed header length.
func pcmSamples(wav []byte) []int16 {
	data := wavDataChunk(wav)
	samples := make([]int16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		samples = append(samples, int16(binary.LittleEndian.Uint16(data[i:i+2])))
	}
	return samples
}

func wavDataChunk(wav []byte) []byte {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" {
		return wav
	}
	off := 12
	for off+8 <= len(wav) {
		tag := string(wav[off : off+4])
		size := int(binary.LittleEndian.Uint32(wav[off+4 : off+8]))
		body := off + 8
		if tag == "data" {
			end := body + size
			if end > len(wav) {
				end = len(wav)
			}
			return wav[body:end]
		}
		off = body + size
	}
	return nil
}
