package render

import (
	"log"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/irfansharif/tessera/internal/geom"
	"github.com/irfansharif/tessera/internal/gpu"
)

// ShaderManager owns the mesh and line/point programs and implements
// Pipeline. Attribute locations follow the order streams are bound in: the
// model's streams first, then the four instance-transform columns.
type ShaderManager struct {
	mesh, flat program
	current    uint32
}

type program struct {
	id         uint32
	uTransform int32 // uniform location for view matrix
	uPointSize int32
}

// Mesh vertex shader. Locations: interleaved position/normal/tangent,
// texcoord, color, then the instance matrix. Normals give a fixed
// directional shade; missing colors read as the constant white set by the
// device.
const meshVertexShaderSource = `
#version 410 core
layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec3 aTangent;
layout (location = 3) in vec2 aTexCoord;
layout (location = 4) in vec4 aColor;
layout (location = 5) in mat4 aModel;

uniform mat4 uTransform;

out vec4 vColor;

void main() {
    gl_Position = uTransform * aModel * vec4(aPos, 1.0);
    float shade = length(aNormal) > 0.0 ? 0.75 + 0.25 * abs(normalize(aNormal).z) : 1.0;
    vColor = vec4(aColor.rgb * shade, aColor.a);
}
` + "\x00"

// Line/point vertex shader. Locations: position, color, instance matrix.
const flatVertexShaderSource = `
#version 410 core
layout (location = 0) in vec3 aPos;
layout (location = 1) in vec4 aColor;
layout (location = 2) in mat4 aModel;

uniform mat4 uTransform;
uniform float uPointSize;

out vec4 vColor;

void main() {
    gl_Position = uTransform * aModel * vec4(aPos, 1.0);
    gl_PointSize = uPointSize;
    vColor = aColor;
}
` + "\x00"

// Fragment shader. Simply applies the vertex-shader forwarded color.
const fragmentShaderSource = `
#version 410 core
in vec4 vColor;
out vec4 FragColor;

void main() {
    FragColor = vColor;
}
` + "\x00"

// NewShaderManager compiles and links both programs.
func NewShaderManager() *ShaderManager {
	sm := &ShaderManager{
		mesh: linkProgram(meshVertexShaderSource, fragmentShaderSource),
		flat: linkProgram(flatVertexShaderSource, fragmentShaderSource),
	}
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	return sm
}

// Use selects the program for p and sets its view matrix.
func (sm *ShaderManager) Use(p gpu.Primitive, view geom.Mat4) {
	prog := &sm.flat
	if p == gpu.Triangles {
		prog = &sm.mesh
	}
	if sm.current != prog.id {
		gl.UseProgram(prog.id)
		sm.current = prog.id
	}
	gl.UniformMatrix4fv(prog.uTransform, 1, false, &view[0])
	if prog.uPointSize >= 0 {
		gl.Uniform1f(prog.uPointSize, 6)
	}
}

// Destroy deletes both programs.
func (sm *ShaderManager) Destroy() {
	gl.UseProgram(0)
	gl.DeleteProgram(sm.mesh.id)
	gl.DeleteProgram(sm.flat.id)
}

func linkProgram(vertexSource, fragmentSource string) program {
	vertexShader := compileShader(vertexSource, gl.VERTEX_SHADER)
	defer gl.DeleteShader(vertexShader)

	fragmentShader := compileShader(fragmentSource, gl.FRAGMENT_SHADER)
	defer gl.DeleteShader(fragmentShader)

	id := gl.CreateProgram()
	gl.AttachShader(id, vertexShader)
	gl.AttachShader(id, fragmentShader)
	gl.LinkProgram(id)

	// Check linking status.
	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(id, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(id, logLength, nil, gl.Str(logText))
		log.Fatalf("Shader linking failed: %s", logText)
	}

	return program{
		id:         id,
		uTransform: gl.GetUniformLocation(id, gl.Str("uTransform\x00")),
		uPointSize: gl.GetUniformLocation(id, gl.Str("uPointSize\x00")),
	}
}

// compileShader compiles a single shader from source.
func compileShader(source string, shaderType uint32) uint32 {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	// Check compilation status.
	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		log.Fatalf("Shader compilation failed: %s", logText)
	}

	return shader
}
