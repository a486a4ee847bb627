package bot

const msgCommandList = `*Commands:*
/start - Start over
/help - Help
/new - New dialogue
/models - List models
/mode - Conversation modes
/settings - Generation settings
/status - System status
/search - Web instant answers`

const msgHelp = `*How to use this bot*

Every message you send goes to a language model running on a local server
(LM Studio). Nothing leaves that machine.

` + msgCommandList + `

*Modes (/mode):*
1. Balanced - creativity and accuracy
2. Creative - more imaginative answers
3. Precise - factual answers
4. Casual - informal conversation
A mode only suggests a temperature; set it with /settings temp <value>.

*Settings (/settings):*
• temp <0-2> - temperature
• tokens <50-2000> - reply length

*Tips:*
• Ask specific questions
• Use /new to change topic
• Smaller models answer faster

*Troubleshooting:*
1. Server not running - start it in LM Studio (Local Server tab)
2. No models - download one in LM Studio
3. Slow replies - use a smaller model or /settings tokens 300`

const msgSetupGuide = `*Model server not found!*

To use this bot:
1. Install LM Studio from https://lmstudio.ai/
2. Download a model (e.g. Mistral-7B-Instruct, Phi-2)
3. In LM Studio open 'Local Server' and press 'Start Server' (port 1234)
4. Send /start again`

const msgBackendDown = `*Model server unavailable*

Please make sure that:
1. LM Studio is running
2. The local server is started (Local Server tab → Start Server)
3. Port 1234 is free

Use /status to check.`

const msgNoModels = `*No models loaded*

To add one:
1. Open LM Studio
2. Go to the 'Search' tab
3. Find and download a model
4. Restart the server

Recommended: mistral-7b-instruct, llama-2-7b-chat, phi-2, zephyr-7b-beta`

const msgNewDialogue = `*New dialogue started!*
The previous conversation was cleared.`

const msgSettingsUsage = `*Change settings:*
/settings temp 0.8 - temperature (0-2)
/settings tokens 1000 - max reply length (50-2000)`

const (
	msgUnknownCommand   = "Unknown command. Send /help to see what I can do."
	msgEmptyReply       = "The model returned an empty reply. Try rephrasing."
	msgGenerationFailed = "Something went wrong while generating a reply. Try /new or a smaller model."
	msgRateLimited      = "You are sending messages too fast. Wait a minute and try again."
)
